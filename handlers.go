package site

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/matdoesdev/site/views"
)

type projectsData struct {
	Projects []Project
}

type blogData struct {
	Posts []PostView
}

type postData struct {
	Post    PostView
	Preview bool
}

type errorData struct {
	Status  int
	Message string
}

func (a *App) handleIndex(c echo.Context) error {
	return a.renderPage(c, http.StatusOK, "index.html", views.PageMeta{Title: a.Config.Name}, nil)
}

func (a *App) handleProjects(c echo.Context) error {
	return a.renderPage(c, http.StatusOK, "projects.html",
		views.PageMeta{Title: "Projects"}, projectsData{Projects: a.Projects})
}

func (a *App) handleBlog(c echo.Context) error {
	posts, err := a.Cache.ListPosts(IsAdmin(c))
	if err != nil {
		return err
	}
	list := make([]PostView, 0, len(posts))
	for _, p := range posts {
		list = append(list, ConvertPost(p, false, a.Sizer))
	}
	return a.renderPage(c, http.StatusOK, "blog.html", views.PageMeta{Title: "Blog"}, blogData{Posts: list})
}

func (a *App) handlePost(c echo.Context) error {
	post, err := a.Cache.GetPost(c.Param("slug"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Post not found")
		}
		return err
	}
	view := ConvertPost(post, true, a.Sizer)
	return a.renderPage(c, http.StatusOK, "blogpost.html", postMeta(view, a.Config), postData{Post: view})
}

func postMeta(view PostView, cfg SiteConfig) views.PageMeta {
	meta := views.PageMeta{
		Title:       view.Title,
		Description: view.Description,
		URL:         BuildURL(cfg.URL, "blog", "post", view.Slug),
		OGType:      "article",
		JSONLD:      BlogPostingJsonLD(view, cfg),
	}
	if view.Image != nil {
		meta.Image = view.Image.URL
	}
	return meta
}

func (a *App) handleRobots(c echo.Context) error {
	body := "User-agent: *\nAllow: /\nDisallow: /blog/login\nDisallow: /blog/new\nDisallow: /blog/edit\n\nSitemap: " +
		BuildURL(a.Config.URL, "sitemap.xml") + "\n"
	return c.String(http.StatusOK, body)
}

// httpErrorHandler renders every 4xx and 5xx as the error page. Server errors
// are logged and their details kept from the visitor.
func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	message := ""
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		}
	}
	if code >= 500 {
		c.Logger().Errorf("server error: %v", err)
		message = ""
	}
	if message == "" {
		message = http.StatusText(code)
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	data := errorData{Status: code, Message: message}
	if rerr := a.renderPage(c, code, "error.html", views.PageMeta{Title: message}, data); rerr != nil {
		c.Logger().Errorf("render error page: %v", rerr)
		_ = c.String(code, message)
	}
}
