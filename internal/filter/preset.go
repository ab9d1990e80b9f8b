package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/therealutkarshpriyadarshi/logview/internal/level"
)

// Preset is a saved filter as stored in the workspace document
type Preset struct {
	Name          string   `yaml:"name"`
	Pattern       string   `yaml:"pattern,omitempty"`
	IsRegex       bool     `yaml:"is_regex,omitempty"`
	CaseSensitive bool     `yaml:"case_sensitive,omitempty"`
	Field         string   `yaml:"field,omitempty"`
	Levels        []string `yaml:"levels,omitempty"`
	WindowSeconds int      `yaml:"window_seconds,omitempty"`
}

// FromPreset converts a preset into criteria. A preset without levels
// enables every level, and a window is only built when center is set.
func FromPreset(p Preset, center time.Time) (Criteria, error) {
	field, err := ParseField(p.Field)
	if err != nil {
		return Criteria{}, fmt.Errorf("preset %q: %w", p.Name, err)
	}

	c := Criteria{
		Pattern:       p.Pattern,
		IsRegex:       p.IsRegex,
		CaseSensitive: p.CaseSensitive,
		Field:         field,
	}

	if len(p.Levels) == 0 {
		c.Levels = AllLevels()
	} else {
		c.Levels = make(map[string]bool, len(p.Levels))
		known := level.AllSet()
		for _, l := range p.Levels {
			l = strings.ToUpper(strings.TrimSpace(l))
			if !known[l] {
				return Criteria{}, fmt.Errorf("preset %q: unknown level %q", p.Name, l)
			}
			c.Levels[l] = true
		}
	}

	if p.WindowSeconds < 0 {
		return Criteria{}, fmt.Errorf("preset %q: window_seconds must be non-negative", p.Name)
	}
	if p.WindowSeconds > 0 && !center.IsZero() {
		c.Window = NewWindow(center, time.Duration(p.WindowSeconds)*time.Second)
	}

	return c, nil
}

// ParseLevels parses a comma separated level list. An empty string
// enables every level.
func ParseLevels(s string) (map[string]bool, error) {
	if strings.TrimSpace(s) == "" {
		return AllLevels(), nil
	}
	known := level.AllSet()
	out := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		l := strings.ToUpper(strings.TrimSpace(part))
		if l == "" {
			continue
		}
		if !known[l] {
			return nil, fmt.Errorf("unknown level %q", l)
		}
		out[l] = true
	}
	return out, nil
}
