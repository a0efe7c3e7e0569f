// Package markdown converts the site's lightweight markdown dialect to HTML
// or plain text.
//
// Conversion is an ordered list of text substitutions. Escaping runs first so
// that HTML emitted by later rules is never re-escaped; every later rule works
// on already-escaped text. The converter holds no state and is safe to call
// from any number of goroutines.
package markdown

import (
	"context"
	"io"
	"regexp"
	"strings"

	"github.com/a-h/templ"
)

// Mode selects the output of Convert.
type Mode int

const (
	// HTML renders the dialect to an HTML fragment.
	HTML Mode = iota
	// PlainText renders to HTML and then removes every tag.
	PlainText
)

// urlChars is the character class accepted inside link and image targets.
const urlChars = `[\p{L}\p{N}_\-./:?=#]`

var (
	reImage      = regexp.MustCompile(`!\[(.+?)\]\((` + urlChars + `+)\)`)
	reImageLeft  = regexp.MustCompile(`,!\[(.+?)\]\((` + urlChars + `+)\)`)
	reImageRight = regexp.MustCompile(`\.!\[(.+?)\]\((` + urlChars + `+)\)`)
	reAutoLink   = regexp.MustCompile(`\b(https?://[\p{L}\p{N}_\-.]+\.[a-z]+\b(?:/(?:[\p{L}\p{N}_\-./?=#%~+]*[\p{L}\p{N}_/])?)?)`)
	reExtLink    = regexp.MustCompile(`\[(.+?)\]\((https?://` + urlChars + `+)\)`)
	reRelLink    = regexp.MustCompile(`\[(.+?)\]\((` + urlChars + `+)\)`)
	reCodeBlock  = regexp.MustCompile("(?s)```(\\w*)\\n?(.+?)\\n?```")
	reInlineCode = regexp.MustCompile("`(.+?)`")
	reQuote      = regexp.MustCompile(`(?m)^&gt; (.+?)\n`)
	reBold       = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reItalic     = regexp.MustCompile(`\*(.+?)\*`)
	reCenter     = regexp.MustCompile(`\|\|(.+?)\|\|`)
	reRule       = regexp.MustCompile(`\n(?:-{3,}|_{3,}|\*{3,})\n`)
	reTag        = regexp.MustCompile(`<.+?>`)
)

// headings maps line prefixes to tags, longest prefix first. There is no h1:
// that level belongs to the page title.
var headings = []struct {
	re  *regexp.Regexp
	tag string
}{
	{regexp.MustCompile(`(?m)^###### (.+)\n`), "h6"},
	{regexp.MustCompile(`(?m)^##### (.+)\n`), "h6"},
	{regexp.MustCompile(`(?m)^#### (.+)\n`), "h5"},
	{regexp.MustCompile(`(?m)^### (.+)\n`), "h4"},
	{regexp.MustCompile(`(?m)^## (.+)\n`), "h3"},
	{regexp.MustCompile(`(?m)^# (.+)\n`), "h2"},
}

var htmlEscaper = strings.NewReplacer(
	`&`, "&amp;",
	`"`, "&quot;",
	"\r\n", "\n",
	`<`, "&lt;",
	`>`, "&gt;",
)

// literalEscapes must be applied one after another, in order: `\\[` resolves
// the bracket before the backslash pair is seen.
var literalEscapes = [][2]string{
	{`\[`, "&#91;"},
	{`\]`, "&#93;"},
	{`\(`, "&#40;"},
	{`\)`, "&#41;"},
	{`\\`, "&#92;"},
	{`\/`, "&#47;"},
	{"\\`", "&#96;"},
	{`\#`, "&#35;"},
	{`\|`, "&#124;"},
	{`\-`, "&#45;"},
	{`\*`, "&#42;"},
	{`\.`, "&#46;"},
	{`\,`, "&#44;"},
}

type rule func(string) string

// pipeline is the full render sequence. Order matters.
var pipeline = []rule{
	escapeHTML,
	resolveEscapes,
	autoLink,
	replace(reImageLeft, ResponsiveImage("${2}", "${1}", "float-left")),
	replace(reImageRight, ResponsiveImage("${2}", "${1}", "float-right")),
	replace(reImage, ResponsiveImage("${2}", "${1}")),
	replace(reExtLink, `<a href="${2}" target="_blank" rel="noreferrer">${1}</a>`),
	replace(reRelLink, `<a href="${2}" target="_blank" aria-label="${1}">${1}</a>`),
	codeBlocks,
	replace(reInlineCode, `<code>${1}</code>`),
	replace(reQuote, `<blockquote>${1}</blockquote>`),
	replace(reBold, `<b>${1}</b>`),
	replace(reItalic, `<i>${1}</i>`),
	replace(reCenter, `<span class="center">${1}</span>`),
	titles,
	replace(reRule, "<hr>\n"),
	strings.NewReplacer("\n", "<br>", "\t", "&emsp;").Replace,
}

// Render converts content to HTML.
func Render(content string) string {
	for _, fn := range pipeline {
		content = fn(content)
	}
	return content
}

// Strip converts content to plain text. It renders first and then removes the
// markup, so the result is a projection of Render's output: tags are dropped,
// entities produced by escaping are kept as-is.
func Strip(content string) string {
	content = Render(content)
	content = strings.ReplaceAll(content, "<br>", "\n")
	content = strings.ReplaceAll(content, "<hr>", " ")
	return reTag.ReplaceAllString(content, "")
}

// Convert dispatches to Render or Strip.
func Convert(content string, mode Mode) string {
	if mode == PlainText {
		return Strip(content)
	}
	return Render(content)
}

// Markdown returns a templ.Component that writes the rendered content.
func Markdown(content string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, Render(content))
		return err
	})
}

func replace(re *regexp.Regexp, tmpl string) rule {
	return func(s string) string {
		return re.ReplaceAllString(s, tmpl)
	}
}

func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

func resolveEscapes(s string) string {
	for _, e := range literalEscapes {
		s = strings.ReplaceAll(s, e[0], e[1])
	}
	return s
}

// autoLink wraps bare URLs in anchors, skipping any URL that directly follows
// "](" because it is already the target of a link or image.
func autoLink(s string) string {
	matches := reAutoLink.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[2], m[3]
		if start >= 2 && s[start-2:start] == "](" {
			continue
		}
		u := s[start:end]
		b.WriteString(s[last:start])
		b.WriteString(`<a href="` + u + `">` + u + `</a>`)
		last = end
	}
	b.WriteString(s[last:])
	return b.String()
}

func codeBlocks(s string) string {
	return reCodeBlock.ReplaceAllStringFunc(s, func(m string) string {
		sub := reCodeBlock.FindStringSubmatch(m)
		lang := sub[1]
		if lang == "" {
			lang = "no-highlight"
		}
		return `<pre><code class="hljs ` + lang + `">` + sub[2] + `</code></pre>`
	})
}

func titles(s string) string {
	for _, h := range headings {
		s = h.re.ReplaceAllString(s, "<"+h.tag+">${1}</"+h.tag+">\n")
	}
	return s
}
