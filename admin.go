package site

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/matdoesdev/site/views"
)

type loginData struct {
	Failed  bool
	Message string
	Ref     string
}

type editData struct {
	New    bool
	Post   PostView
	Errors map[string]string
}

func (a *App) handleLogin(c echo.Context) error {
	if IsAdmin(c) {
		return c.Redirect(http.StatusFound, SanitizeRef(c.QueryParam("ref"), a.Config.URL))
	}
	return a.renderLogin(c, http.StatusOK, loginData{Ref: c.QueryParam("ref")})
}

func (a *App) renderLogin(c echo.Context, code int, data loginData) error {
	return a.renderPage(c, code, "login.html", views.PageMeta{Title: "Log in"}, data)
}

func (a *App) handleLoginSubmit(c echo.Context) error {
	ip := c.RealIP()
	form := bindLoginForm(c)
	if !a.loginLimiter.Check(ip) {
		a.Metrics.login("limited")
		return a.renderLogin(c, http.StatusTooManyRequests, loginData{
			Failed: true, Message: "Too many login attempts. Try again later.", Ref: form.Ref,
		})
	}
	if a.captcha != nil {
		ok, err := a.captcha.Verify(c.Request().Context(), form.Captcha, ip)
		if err != nil {
			c.Logger().Warnf("captcha verification: %v", err)
		}
		if !ok {
			a.loginLimiter.Record(ip)
			a.Metrics.login("captcha")
			return a.renderLogin(c, http.StatusUnauthorized, loginData{
				Failed: true, Message: "Captcha check failed.", Ref: form.Ref,
			})
		}
	}
	if form.Validate() != nil || !a.credentialsMatch(form.Username, form.Password) {
		a.loginLimiter.Record(ip)
		a.Metrics.login("denied")
		c.Logger().Warnf("failed admin login from %s", ip)
		return a.renderLogin(c, http.StatusUnauthorized, loginData{
			Failed: true, Message: "Wrong username or password.", Ref: form.Ref,
		})
	}
	a.loginLimiter.Reset(ip)
	if err := setAdminSession(c, form.Username); err != nil {
		return err
	}
	a.Metrics.login("ok")
	return c.Redirect(http.StatusFound, SanitizeRef(form.Ref, a.Config.URL))
}

func (a *App) credentialsMatch(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.Config.AdminUsername))
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.Config.AdminPassword))
	return userOK&passOK == 1
}

func (a *App) handleLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/blog")
}

func (a *App) author(c echo.Context) string {
	if name := AdminUsername(c); name != "" {
		return name
	}
	return a.Config.AdminUsername
}

func (a *App) renderEditor(c echo.Context, code int, data editData) error {
	title := "Edit post"
	if data.New {
		title = "New post"
	}
	return a.renderPage(c, code, "editpost.html", views.PageMeta{Title: title}, data)
}

func (a *App) handleNewPost(c echo.Context) error {
	return a.renderEditor(c, http.StatusOK, editData{New: true})
}

func (a *App) handleCreatePost(c echo.Context) error {
	form := bindPostForm(c, false)
	if err := form.Validate(); err != nil {
		return a.renderEditor(c, http.StatusBadRequest, editData{New: true, Post: form.view(), Errors: fieldErrors(err)})
	}
	post := NewPostDocument(form.Title, form.Body, a.author(c), form.Tags, form.Unlisted, a.Config.URL)
	slug, err := UniqueSlug(post.Slug, a.Store.SlugExists)
	if err != nil {
		return err
	}
	post.Slug = slug
	if err := a.Store.CreatePost(post); err != nil {
		return err
	}
	a.afterSave(post, "create")
	return c.Redirect(http.StatusFound, post.Link())
}

func (a *App) handleEditPost(c echo.Context) error {
	post, err := a.Store.GetPost(c.Param("slug"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Post not found")
		}
		return err
	}
	return a.renderEditor(c, http.StatusOK, editData{Post: ConvertPost(post, false, nil)})
}

// handleUpdatePost saves the editor form over an existing post. The post
// keeps its ID, slug and creation time. Unlisted posts go back to the editor,
// listed ones to their page.
func (a *App) handleUpdatePost(c echo.Context) error {
	form := bindPostForm(c, true)
	if err := form.Validate(); err != nil {
		return a.renderEditor(c, http.StatusBadRequest, editData{Post: form.view(), Errors: fieldErrors(err)})
	}
	existing, err := a.Store.GetPost(form.Slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Post not found")
		}
		return err
	}
	updated := NewPostDocument(form.Title, form.Body, a.author(c), form.Tags, form.Unlisted, a.Config.URL)
	updated.ID = existing.ID
	updated.Slug = existing.Slug
	updated.Created = existing.Created
	updated.Edited = time.Now().UTC()
	if err := a.Store.UpdatePost(existing.Slug, updated); err != nil {
		return err
	}
	a.afterSave(updated, "edit")
	if updated.Hidden {
		return c.Redirect(http.StatusFound, "/blog/edit/"+updated.Slug)
	}
	return c.Redirect(http.StatusFound, updated.Link())
}

// handlePreview renders the editor content as a post page without saving.
func (a *App) handlePreview(c echo.Context) error {
	form := bindPostForm(c, false)
	post := NewPostDocument(form.Title, form.Body, a.author(c), form.Tags, form.Unlisted, a.Config.URL)
	view := ConvertPost(post, true, a.Sizer)
	meta := postMeta(view, a.Config)
	meta.Title = "Preview: " + view.Title
	return a.renderPage(c, http.StatusOK, "blogpost.html", meta, postData{Post: view, Preview: true})
}

func (a *App) handleDeletePost(c echo.Context) error {
	if err := a.Store.DeletePost(c.Param("slug")); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Post not found")
		}
		return err
	}
	a.Cache.Invalidate()
	a.Metrics.postSaved("delete")
	return c.Redirect(http.StatusSeeOther, "/blog")
}

func (a *App) afterSave(p Post, action string) {
	a.Cache.Invalidate()
	a.Metrics.postSaved(action)
	if p.Image != nil {
		a.Sizer.Prefetch(p.Image.URL)
	}
}

// view turns submitted form values back into something the editor can show.
func (f postForm) view() PostView {
	return PostView{
		Slug:    f.Slug,
		Title:   f.Title,
		Content: f.Body,
		Tags:    f.Tags,
		Hidden:  f.Unlisted,
	}
}
