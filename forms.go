package site

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/labstack/echo/v4"
)

const maxTitleLength = 200

// postForm is the editor form shared by new, edit and preview.
type postForm struct {
	Title    string
	Body     string
	Slug     string
	Tags     []string
	Unlisted bool

	editing bool
}

func bindPostForm(c echo.Context, editing bool) postForm {
	return postForm{
		Title:    strings.TrimSpace(c.FormValue("title")),
		Body:     strings.ReplaceAll(c.FormValue("body"), "\r\n", "\n"),
		Slug:     strings.TrimSpace(c.FormValue("slug")),
		Tags:     FilterEmpty(strings.Split(c.FormValue("tags"), ",")),
		Unlisted: c.FormValue("unlisted") == "on",
		editing:  editing,
	}
}

func (f postForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Title, validation.Required, validation.RuneLength(1, maxTitleLength)),
		validation.Field(&f.Body, validation.Required),
		validation.Field(&f.Slug, validation.When(f.editing, validation.Required)),
	)
}

// loginForm is the admin login form.
type loginForm struct {
	Username string
	Password string
	Captcha  string
	Ref      string
}

func bindLoginForm(c echo.Context) loginForm {
	return loginForm{
		Username: c.FormValue("username"),
		Password: c.FormValue("password"),
		Captcha:  c.FormValue("g-recaptcha-response"),
		Ref:      c.FormValue("ref"),
	}
}

func (f loginForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Username, validation.Required),
		validation.Field(&f.Password, validation.Required),
	)
}

// fieldErrors flattens ozzo validation errors into field -> message for
// templates. Other errors are reported under "form".
func fieldErrors(err error) map[string]string {
	if err == nil {
		return nil
	}
	out := make(map[string]string)
	if errs, ok := err.(validation.Errors); ok {
		for field, e := range errs {
			out[field] = e.Error()
		}
		return out
	}
	out["form"] = err.Error()
	return out
}
