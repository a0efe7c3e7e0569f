package site

import (
	"time"

	"github.com/matdoesdev/site/markdown"
)

// Post is a blog post as stored. Content is the only persisted form of the
// body; HTML and plain text are derived from it on demand.
type Post struct {
	ID      string
	Slug    string
	Title   string
	Content string
	Author  string
	Tags    []string
	Created time.Time
	Edited  time.Time
	Image   *markdown.Image // first image, absolute URL
	Images  []markdown.Image
	Hidden  bool // unlisted: reachable by slug, left out of listings
}

// Link returns the site-relative URL of the post.
func (p Post) Link() string {
	return "/blog/post/" + p.Slug
}

// PostImage is the lead image of a post with its pixel size.
type PostImage struct {
	URL    string
	Alt    string
	Width  int
	Height int
}

// PostView is a post prepared for templates.
type PostView struct {
	ID          string
	Slug        string
	Title       string
	Author      string
	Tags        []string
	Content     string
	Text        string // plain text, single line
	Description string
	HTML        string // empty unless requested
	Image       *PostImage
	Images      []markdown.Image
	ReadTime    string
	TimeAgo     string
	Created     time.Time
	Edited      time.Time
	Hidden      bool
}

// Link returns the site-relative URL of the post.
func (v PostView) Link() string {
	return "/blog/post/" + v.Slug
}

// UploadedImage is metadata for an image uploaded through the admin pages.
type UploadedImage struct {
	Filename     string
	OriginalName string
	Width        int
	Height       int
	Size         int64
	UploadedAt   time.Time
}

// URL returns the public path of the uploaded file.
func (i UploadedImage) URL() string {
	return "/" + uploadsSubdir + "/" + i.Filename
}

// Project is an entry on the projects page.
type Project struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Link        string   `yaml:"link" json:"link"`
	Source      string   `yaml:"source" json:"source"`
	Image       string   `yaml:"image" json:"image"`
	Tags        []string `yaml:"tags" json:"tags"`
}
