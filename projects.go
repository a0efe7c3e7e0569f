package site

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/matdoesdev/site/scaffold"
)

// ParseProjects decodes a projects list. YAML and JSON are both accepted.
func ParseProjects(data []byte) ([]Project, error) {
	var projects []Project
	if err := yaml.Unmarshal(data, &projects); err != nil {
		return nil, fmt.Errorf("site: parse projects: %w", err)
	}
	return projects, nil
}

// LoadProjects reads and parses the projects file at path.
func LoadProjects(path string) ([]Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseProjects(data)
}

// loadProjects reads the configured projects file, falling back to the
// embedded starter list when there is none.
func (a *App) loadProjects() ([]Project, error) {
	projects, err := LoadProjects(a.Config.ProjectsPath)
	if err == nil {
		return projects, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	a.Echo.Logger.Warnf("%s not found, using the built-in project list", a.Config.ProjectsPath)
	data, err := scaffold.Projects()
	if err != nil {
		return nil, err
	}
	return ParseProjects(data)
}
