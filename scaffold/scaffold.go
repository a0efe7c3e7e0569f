// Package scaffold embeds the starter files for a site: page templates, a
// projects list and an example environment file. The site serves the
// embedded templates when no template directory is configured, and
// `site new` writes all of them out.
package scaffold

import (
	"embed"
	"io/fs"
)

// Root is the directory inside Files that holds the starter files.
const Root = "files"

// Files contains every starter file. Files ending in .tmpl use Go
// text/template syntax; the rest are copied as they are.
//
//go:embed all:files
var Files embed.FS

// Templates returns the embedded page templates.
func Templates() fs.FS {
	sub, err := fs.Sub(Files, Root+"/templates")
	if err != nil {
		panic(err)
	}
	return sub
}

// Projects returns the starter projects list.
func Projects() ([]byte, error) {
	return fs.ReadFile(Files, Root+"/projects.json")
}
