package site

import (
	"bytes"
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/matdoesdev/site/views"
)

// Render writes a component as an HTTP 200 HTML response.
func Render(c echo.Context, cmp templ.Component) error {
	return RenderStatus(c, http.StatusOK, cmp)
}

// RenderStatus writes a component with a specific HTTP status code. The
// component is rendered fully before anything is sent, so a failing template
// still reaches the error handler.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	var buf bytes.Buffer
	if err := cmp.Render(c.Request().Context(), &buf); err != nil {
		return err
	}
	return c.HTMLBlob(code, buf.Bytes())
}

// page builds the data every template receives.
func (a *App) page(c echo.Context, meta views.PageMeta, data any) views.Page {
	if meta.URL == "" {
		meta.URL = BuildURL(a.Config.URL, c.Request().URL.Path)
	}
	if meta.Description == "" {
		meta.Description = a.Config.Description
	}
	if meta.OGType == "" {
		meta.OGType = "website"
	}
	if meta.JSONLD == "" {
		meta.JSONLD = WebsiteJsonLD(a.Config)
	}
	return views.Page{
		Site: views.Site{
			Name:             a.Config.Name,
			URL:              a.Config.URL,
			Description:      a.Config.Description,
			Author:           a.Config.Author,
			RecaptchaSiteKey: a.Config.RecaptchaSiteKey,
		},
		Meta:    meta,
		Path:    c.Request().URL.Path,
		IsAdmin: IsAdmin(c),
		CSRF:    CsrfToken(c),
		Data:    data,
	}
}

func (a *App) renderPage(c echo.Context, code int, name string, meta views.PageMeta, data any) error {
	return RenderStatus(c, code, a.Views.Component(name, a.page(c, meta, data)))
}
