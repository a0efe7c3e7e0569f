package site

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const sitemapTimeLayout = "2006-01-02T15:04:05Z"

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc      string `xml:"loc"`
	LastMod  string `xml:"lastmod,omitempty"`
	Priority string `xml:"priority"`
}

func (a *App) handleSitemap(c echo.Context) error {
	posts, err := a.Cache.ListPosts(false)
	if err != nil {
		return err
	}
	return a.renderSitemap(c, posts)
}

// renderSitemap lists the fixed pages and every listed post. Fixed pages are
// stamped with the server start time; /blog with its newest post.
func (a *App) renderSitemap(c echo.Context, posts []Post) error {
	base := a.Config.URL
	started := a.started.UTC().Format(sitemapTimeLayout)
	blogMod := started
	if len(posts) > 0 {
		blogMod = posts[0].Created.UTC().Format(sitemapTimeLayout)
	}
	urls := []sitemapURL{
		{Loc: BuildURL(base), LastMod: started, Priority: "1.0"},
		{Loc: BuildURL(base, "projects"), LastMod: started, Priority: "0.8"},
		{Loc: BuildURL(base, "blog"), LastMod: blogMod, Priority: "0.7"},
	}
	for _, p := range posts {
		urls = append(urls, sitemapURL{
			Loc:      BuildURL(base, "blog", "post", p.Slug),
			LastMod:  lastModified(p).Format(sitemapTimeLayout),
			Priority: "0.6",
		})
	}
	sitemap := sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(sitemap)
}

func lastModified(p Post) time.Time {
	if p.Edited.After(p.Created) {
		return p.Edited.UTC()
	}
	return p.Created.UTC()
}
