package views

import (
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/matdoesdev/site/markdown"
)

// Funcs returns the functions available to every template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"safe":       Safe,
		"jsonld":     JSONLD,
		"markdown":   Markdown,
		"image":      Image,
		"join":       strings.Join,
		"bytes":      Bytes,
		"year":       func() int { return time.Now().Year() },
		"date":       func(t time.Time) string { return t.Format("January 2, 2006") },
		"iso":        func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
		"pathescape": url.PathEscape,
	}
}

// Safe marks s as trusted HTML. Only use it on markup the site produced.
func Safe(s string) template.HTML {
	return template.HTML(s)
}

// JSONLD marks a JSON-LD document for output inside a script element.
func JSONLD(s string) template.JS {
	return template.JS(s)
}

// Markdown renders post markup to HTML.
func Markdown(s string) template.HTML {
	return template.HTML(markdown.Render(s))
}

// Image returns a lazily loaded image with a noscript fallback. src and alt
// are escaped.
func Image(src, alt string, classes ...string) template.HTML {
	return template.HTML(markdown.ResponsiveImage(
		template.HTMLEscapeString(src),
		template.HTMLEscapeString(alt),
		classes...,
	))
}

// Bytes formats a byte count for people, e.g. "82 kB".
func Bytes(n int64) string {
	if n < 0 {
		return "0 B"
	}
	return humanize.Bytes(uint64(n))
}
