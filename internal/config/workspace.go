package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/therealutkarshpriyadarshi/logview/internal/filter"
)

// WorkspaceVersion is written into every saved workspace document
const WorkspaceVersion = 1

// FilterPreset is a named filter saved with the workspace
type FilterPreset = filter.Preset

// WorkspaceSource is one file of a saved session
type WorkspaceSource struct {
	Path    string `yaml:"path"`
	Alias   string `yaml:"alias,omitempty"`
	Visible bool   `yaml:"visible"`
}

// UnmarshalYAML makes a missing visible key mean visible
func (s *WorkspaceSource) UnmarshalYAML(node *yaml.Node) error {
	type plain WorkspaceSource
	p := plain{Visible: true}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*s = WorkspaceSource(p)
	return nil
}

// Workspace is the persisted configuration document of a session: the
// loaded files, keyword list, limits and saved filters
type Workspace struct {
	Version             int               `yaml:"version"`
	Sources             []WorkspaceSource `yaml:"sources"`
	Keywords            []string          `yaml:"keywords,omitempty"`
	MaxLinesPerFile     int               `yaml:"max_lines_per_file,omitempty"`
	ShowLineRateWarning bool              `yaml:"show_line_rate_warning"`
	Presets             []FilterPreset    `yaml:"presets,omitempty"`
}

// Validate checks sources and presets
func (w *Workspace) Validate() error {
	seen := make(map[string]bool, len(w.Sources))
	for i, s := range w.Sources {
		if s.Path == "" {
			return fmt.Errorf("workspace source %d has no path", i)
		}
		if seen[s.Path] {
			return fmt.Errorf("workspace source %q is listed twice", s.Path)
		}
		seen[s.Path] = true
	}
	if w.MaxLinesPerFile < 0 {
		return fmt.Errorf("max_lines_per_file must be non-negative")
	}

	names := make(map[string]bool, len(w.Presets))
	for i, p := range w.Presets {
		if p.Name == "" {
			return fmt.Errorf("preset %d has no name", i)
		}
		if names[p.Name] {
			return fmt.Errorf("preset %q is defined twice", p.Name)
		}
		names[p.Name] = true
		if _, err := filter.FromPreset(p, time.Time{}); err != nil {
			return err
		}
	}
	return nil
}

// Preset returns the preset with the given name
func (w *Workspace) Preset(name string) (FilterPreset, bool) {
	for _, p := range w.Presets {
		if p.Name == name {
			return p, true
		}
	}
	return FilterPreset{}, false
}

// LoadWorkspace reads a workspace document. A missing file is reported
// with an error satisfying errors.Is(err, fs.ErrNotExist).
func LoadWorkspace(path string) (*Workspace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace: %w", err)
	}

	ws := &Workspace{ShowLineRateWarning: true}
	if err := yaml.Unmarshal(data, ws); err != nil {
		return nil, fmt.Errorf("failed to parse workspace: %w", err)
	}
	if err := ws.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workspace: %w", err)
	}
	return ws, nil
}

// SaveWorkspace writes ws to path through a temporary file and a rename
func SaveWorkspace(path string, ws *Workspace) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}

	out := *ws
	out.Version = WorkspaceVersion

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal workspace: %w", err)
	}

	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write workspace: %w", err)
	}
	if err := os.Rename(tmpFile, path); err != nil {
		return fmt.Errorf("failed to rename workspace: %w", err)
	}
	return nil
}
