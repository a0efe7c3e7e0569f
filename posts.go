package site

import (
	"encoding/hex"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/matdoesdev/site/markdown"
)

const descriptionLength = 160

var reSlugSeparator = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// ImageSizes reports the pixel size of an image by URL. It must not block.
type ImageSizes interface {
	Size(url string) ImageSize
}

// NewPostDocument builds a new post from editor input. The ID is a random
// UUID in hex, the slug is derived from the title, and the image list and
// lead image are extracted from the content.
func NewPostDocument(title, content, author string, tags []string, hidden bool, baseURL string) Post {
	id := uuid.New()
	now := time.Now().UTC()
	return Post{
		ID:      hex.EncodeToString(id[:]),
		Slug:    GenerateSlug(title),
		Title:   title,
		Content: content,
		Author:  author,
		Tags:    tags,
		Created: now,
		Edited:  now,
		Image:   markdown.FindFirstImage(content, baseURL),
		Images:  markdown.FindImages(content),
		Hidden:  hidden,
	}
}

// GenerateSlug lower-cases title and joins its runs of letters and digits
// with "-". Titles without any letter or digit get "post".
func GenerateSlug(title string) string {
	slug := reSlugSeparator.ReplaceAllString(strings.ToLower(title), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "post"
	}
	return slug
}

// UniqueSlug returns base, or base with the lowest "-N" suffix (N >= 2) that
// exists reports as unused.
func UniqueSlug(base string, exists func(string) (bool, error)) (string, error) {
	candidate := base
	for n := 2; ; n++ {
		taken, err := exists(candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}

// ConvertPost prepares p for display. HTML is rendered only when withHTML is
// set; the lead image size comes from sizes, or the default size when sizes
// is nil.
func ConvertPost(p Post, withHTML bool, sizes ImageSizes) PostView {
	text := PlainText(p.Content)
	v := PostView{
		ID:          p.ID,
		Slug:        p.Slug,
		Title:       p.Title,
		Author:      p.Author,
		Tags:        p.Tags,
		Content:     p.Content,
		Text:        text,
		Description: Description(text),
		Images:      p.Images,
		ReadTime:    FormatReadTime(ReadTime(text, p.Content, len(p.Images))),
		TimeAgo:     Since(p.Created),
		Created:     p.Created,
		Edited:      p.Edited,
		Hidden:      p.Hidden,
	}
	if v.Slug == "" {
		v.Slug = GenerateSlug(p.Title)
	}
	if withHTML {
		v.HTML = markdown.Render(p.Content)
	}
	if p.Image != nil {
		size := DefaultImageSize
		if sizes != nil {
			size = sizes.Size(p.Image.URL)
		}
		v.Image = &PostImage{URL: p.Image.URL, Alt: p.Image.Alt, Width: size.Width, Height: size.Height}
	}
	return v
}

// PlainText returns content as a single line of plain text.
func PlainText(content string) string {
	text := markdown.Strip(content)
	text = strings.ReplaceAll(text, "&emsp;", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "  ", " ")
	return html.UnescapeString(text)
}

// Description returns up to the first 160 characters of text, cut back to the
// last full stop when there is one.
func Description(text string) string {
	if utf8.RuneCountInString(text) > descriptionLength {
		text = string([]rune(text)[:descriptionLength])
	}
	text = strings.TrimSpace(text)
	if i := strings.LastIndexByte(text, '.'); i >= 0 {
		text = text[:i+1]
	}
	return text
}

// ReadTime estimates reading time in seconds: a quarter second per word, a
// decreasing allowance per image (12 seconds for the first, never below 3),
// and a fifth of a second per source line.
func ReadTime(text, content string, images int) float64 {
	seconds := float64(len(strings.Fields(text))) * 0.25
	for i := 0; i < images; i++ {
		seconds += float64(max(12-i, 3))
	}
	seconds += float64(strings.Count(content, "\n")+1) * 0.2
	return seconds
}
