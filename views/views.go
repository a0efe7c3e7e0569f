// Package views loads the site's html/template pages and adapts them to
// templ components.
package views

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/a-h/templ"
)

// partialsPattern matches the templates shared by every page.
const partialsPattern = "_*.html"

// Set loads page templates from a file system. A page is parsed together
// with every partial the first time it is used and cached after that.
type Set struct {
	fsys  fs.FS
	funcs template.FuncMap

	mu    sync.RWMutex
	pages map[string]*template.Template
}

// New creates a Set reading from fsys.
func New(fsys fs.FS) *Set {
	return &Set{
		fsys:  fsys,
		funcs: Funcs(),
		pages: make(map[string]*template.Template),
	}
}

// Pages lists the page templates in the set, partials excluded.
func (s *Set) Pages() ([]string, error) {
	all, err := fs.Glob(s.fsys, "*.html")
	if err != nil {
		return nil, err
	}
	var pages []string
	for _, name := range all {
		if !isPartial(name) {
			pages = append(pages, name)
		}
	}
	return pages, nil
}

// Preload parses every page so that template errors surface at startup.
func (s *Set) Preload() error {
	pages, err := s.Pages()
	if err != nil {
		return err
	}
	if len(pages) == 0 {
		return fmt.Errorf("views: no page templates found")
	}
	for _, name := range pages {
		if _, err := s.Lookup(name); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the parsed page called name.
func (s *Set) Lookup(name string) (*template.Template, error) {
	s.mu.RLock()
	t, ok := s.pages[name]
	s.mu.RUnlock()
	if ok {
		return t, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.pages[name]; ok {
		return t, nil
	}
	t, err := s.parse(name)
	if err != nil {
		return nil, err
	}
	s.pages[name] = t
	return t, nil
}

func (s *Set) parse(name string) (*template.Template, error) {
	if isPartial(name) {
		return nil, fmt.Errorf("views: %s is a partial, not a page", name)
	}
	partials, err := fs.Glob(s.fsys, partialsPattern)
	if err != nil {
		return nil, err
	}
	patterns := append([]string{name}, partials...)
	t, err := template.New(path.Base(name)).Funcs(s.funcs).ParseFS(s.fsys, patterns...)
	if err != nil {
		return nil, fmt.Errorf("views: parse %s: %w", name, err)
	}
	return t, nil
}

// Execute renders the page called name to w.
func (s *Set) Execute(w io.Writer, name string, data any) error {
	t, err := s.Lookup(name)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return fmt.Errorf("views: render %s: %w", name, err)
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// Component returns the page called name as a templ.Component.
func (s *Set) Component(name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return s.Execute(w, name, data)
	})
}

func isPartial(name string) bool {
	return strings.HasPrefix(path.Base(name), "_")
}
