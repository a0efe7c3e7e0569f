package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/matdoesdev/site/scaffold"
)

// scaffoldData holds the variables passed to every .tmpl starter file.
type scaffoldData struct {
	SiteName string
	SiteURL  string
}

func runNew(dir string) error {
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("directory %q already exists", dir)
	}

	data := scaffoldData{
		SiteName: toTitle(filepath.Base(dir)),
		SiteURL:  "http://localhost:8080",
	}

	fmt.Printf("Creating new site in %s\n\n", dir)

	err := fs.WalkDir(scaffold.Files, scaffold.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(scaffold.Root, path)
		if err != nil {
			return err
		}
		outPath := filepath.Join(dir, relPath)
		if d.IsDir() {
			return os.MkdirAll(outPath, 0o755)
		}
		return writeStarterFile(path, outPath, data)
	})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(dir, "website"), 0o755); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Done! Next steps:")
	fmt.Println()
	fmt.Printf("  cd %s\n", dir)
	fmt.Println("  cp .env.example .env   # set ADMIN_PASSWORD and ADMIN_SESSION_SECRET")
	fmt.Println("  site serve")
	fmt.Println()
	return nil
}

// writeStarterFile copies one embedded file to outPath. Files ending in .tmpl
// are executed as text/template and lose the suffix; dotenv becomes
// .env.example.
func writeStarterFile(path, outPath string, data scaffoldData) error {
	content, err := scaffold.Files.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	if strings.HasSuffix(outPath, ".tmpl") {
		outPath = strings.TrimSuffix(outPath, ".tmpl")
		tmpl, err := template.New(filepath.Base(path)).Parse(string(content))
		if err != nil {
			return fmt.Errorf("parse template %s: %w", path, err)
		}
		var sb strings.Builder
		if err := tmpl.Execute(&sb, data); err != nil {
			return fmt.Errorf("execute template %s: %w", path, err)
		}
		content = []byte(sb.String())
	}
	if filepath.Base(outPath) == "dotenv" {
		outPath = filepath.Join(filepath.Dir(outPath), ".env.example")
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(outPath, content, 0o644); err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	fmt.Printf("  created %s\n", outPath)
	return nil
}

// toTitle converts a hyphenated or lowercase name to a title-case string.
// e.g. "my-site" -> "My Site"
func toTitle(s string) string {
	parts := strings.Split(s, "-")
	for i, p := range parts {
		if len(p) > 0 {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}
