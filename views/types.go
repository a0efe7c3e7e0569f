package views

// Site holds site-wide settings every template can read.
type Site struct {
	Name             string
	URL              string
	Description      string
	Author           string
	RecaptchaSiteKey string
}

// PageMeta carries per-page OpenGraph and SEO metadata into the head partial.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Image       string // og:image, absolute
	JSONLD      string
}

// Page is the root value passed to every page template. Data holds the
// page-specific values.
type Page struct {
	Site    Site
	Meta    PageMeta
	Path    string
	IsAdmin bool
	CSRF    string
	Data    any
}
