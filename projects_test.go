package site

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matdoesdev/site/scaffold"
)

func TestParseProjectsJSON(t *testing.T) {
	data := []byte(`[{"name": "site", "description": "this website", "link": "https://matdoes.dev", "tags": ["go"]}]`)
	projects, err := ParseProjects(data)
	if err != nil {
		t.Fatalf("ParseProjects failed: %v", err)
	}
	if len(projects) != 1 || projects[0].Name != "site" || projects[0].Link != "https://matdoes.dev" {
		t.Fatalf("projects = %+v", projects)
	}
	if len(projects[0].Tags) != 1 || projects[0].Tags[0] != "go" {
		t.Errorf("tags = %v", projects[0].Tags)
	}
}

func TestParseProjectsYAML(t *testing.T) {
	data := []byte("- name: bot\n  description: a bot\n  source: https://github.com/mat-1/bot\n")
	projects, err := ParseProjects(data)
	if err != nil {
		t.Fatalf("ParseProjects failed: %v", err)
	}
	if len(projects) != 1 || projects[0].Source != "https://github.com/mat-1/bot" {
		t.Fatalf("projects = %+v", projects)
	}
}

func TestParseProjectsInvalid(t *testing.T) {
	if _, err := ParseProjects([]byte("{not: [valid")); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadProjects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projects.yaml")
	if err := os.WriteFile(path, []byte("- name: one\n- name: two\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	projects, err := LoadProjects(path)
	if err != nil {
		t.Fatalf("LoadProjects failed: %v", err)
	}
	if len(projects) != 2 {
		t.Errorf("got %d projects", len(projects))
	}
}

func TestStarterProjectsParse(t *testing.T) {
	data, err := scaffold.Projects()
	if err != nil {
		t.Fatalf("scaffold.Projects: %v", err)
	}
	projects, err := ParseProjects(data)
	if err != nil {
		t.Fatalf("starter projects invalid: %v", err)
	}
	if len(projects) == 0 {
		t.Error("starter projects empty")
	}
}
