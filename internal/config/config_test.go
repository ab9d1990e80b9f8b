package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/therealutkarshpriyadarshi/logview/internal/parser"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	configPath := writeFile(t, t.TempDir(), "config.yaml", `
logging:
  level: debug
  format: json

limits:
  max_sources: 5
  show_line_rate_warning: false

ingest:
  workers: 2
  job_timeout: 30s

watch:
  enabled: true
  debounce: 250ms
  min_reload_interval: 2s
  retry:
    max_retries: 2

parsers:
  - name: nginx
    type: regex
    extensions: [".access"]
    pattern: '^(?P<timestamp>\S+) (?P<message>.*)$'
  - name: events
    type: json
    extensions: [".events"]
    time_field: at

keywords:
  words: [timeout, refused]
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Limits.MaxSources != 5 {
		t.Errorf("MaxSources = %d, want 5", cfg.Limits.MaxSources)
	}
	if cfg.LineRateWarning() {
		t.Error("explicit false line rate warning was overridden")
	}
	if cfg.Limits.MaxLinesPerFile != DefaultMaxLinesPerFile {
		t.Errorf("MaxLinesPerFile = %d, want default", cfg.Limits.MaxLinesPerFile)
	}
	if pc := cfg.PoolConfig(); pc.NumWorkers != 2 || pc.JobTimeout != 30*time.Second || pc.QueueSize != DefaultQueueSize {
		t.Errorf("PoolConfig() = %+v", pc)
	}
	if wc := cfg.WatcherConfig(); wc.Debounce != 250*time.Millisecond || wc.MinReloadInterval != 2*time.Second {
		t.Errorf("WatcherConfig() = %+v", wc)
	}
	if cfg.ReloadRetry().MaxRetries != 2 {
		t.Errorf("ReloadRetry().MaxRetries = %d, want 2", cfg.ReloadRetry().MaxRetries)
	}
	if len(cfg.Parsers) != 2 || cfg.Parsers[0].Type != parser.ParserTypeRegex || cfg.Parsers[1].TimeField != "at" {
		t.Errorf("parsers = %+v", cfg.Parsers)
	}
	if len(cfg.Keywords.Words) != 2 {
		t.Errorf("keywords = %v", cfg.Keywords.Words)
	}
}

func TestLoadConfigWithEnvVars(t *testing.T) {
	t.Setenv("LOGVIEW_LEVEL", "warn")
	t.Setenv("LOGVIEW_WORKSPACE", "/tmp/ws.yaml")

	configPath := writeFile(t, t.TempDir(), "config.yaml", `
logging:
  level: ${LOGVIEW_LEVEL}
workspace:
  path: ${LOGVIEW_WORKSPACE}
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Expected log level warn, got %s", cfg.Logging.Level)
	}
	if cfg.Workspace.Path != "/tmp/ws.yaml" {
		t.Errorf("Expected workspace path from env, got %s", cfg.Workspace.Path)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, true},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"zero sources", func(c *Config) { c.Limits.MaxSources = -1 }, true},
		{"negative debounce", func(c *Config) { c.Watch.Debounce = -time.Second }, true},
		{"unnamed parser", func(c *Config) {
			c.Parsers = []parser.ParserConfig{{Type: parser.ParserTypeJSON}}
		}, true},
		{"regex without pattern", func(c *Config) {
			c.Parsers = []parser.ParserConfig{{Name: "x", Type: parser.ParserTypeRegex}}
		}, true},
		{"duplicate parser", func(c *Config) {
			c.Parsers = []parser.ParserConfig{
				{Name: "x", Type: parser.ParserTypeJSON},
				{Name: "x", Type: parser.ParserTypeJSON},
			}
		}, true},
		{"scoped text parser", func(c *Config) {
			c.Parsers = []parser.ParserConfig{{Name: "plain", Type: parser.ParserTypeText, Extensions: []string{".out"}}}
		}, false},
		{"text parser without extensions", func(c *Config) {
			c.Parsers = []parser.ParserConfig{{Name: "plain", Type: parser.ParserTypeText}}
		}, true},
		{"unknown parser type", func(c *Config) {
			c.Parsers = []parser.ParserConfig{{Name: "x", Type: "grok"}}
		}, true},
		{"sample rate", func(c *Config) { c.Tracing.SampleRate = 2 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
	if cfg.Logging.Level != DefaultLogLevel {
		t.Errorf("Expected default log level %s, got %s", DefaultLogLevel, cfg.Logging.Level)
	}
	if cfg.Limits.MaxSources != 20 || cfg.Limits.MaxDisplayedRecords != 10000 || cfg.Limits.MaxLinesPerFile != 50000 {
		t.Errorf("limits = %+v", cfg.Limits)
	}
	if !cfg.LineRateWarning() {
		t.Error("line rate warning should default to on")
	}
	if cfg.Watch.Debounce != 500*time.Millisecond {
		t.Errorf("debounce = %v, want 500ms", cfg.Watch.Debounce)
	}
	if cfg.Metrics.Enabled || cfg.Tracing.Enabled {
		t.Error("metrics and tracing should be off by default")
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Limits.MaxSources != DefaultMaxSources {
		t.Error("missing file should yield defaults")
	}

	bad := writeFile(t, t.TempDir(), "bad.yaml", "logging: [")
	if _, err := LoadOrDefault(bad); err == nil {
		t.Error("malformed file should be an error")
	}
}

func TestWorkspaceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ws.yaml")
	ws := &Workspace{
		Sources: []WorkspaceSource{
			{Path: "/var/log/api.log", Alias: "api", Visible: true},
			{Path: "/var/log/db.log", Visible: false},
		},
		Keywords:            []string{"timeout"},
		MaxLinesPerFile:     1000,
		ShowLineRateWarning: true,
		Presets: []FilterPreset{
			{Name: "errors", Levels: []string{"ERROR", "FATAL"}},
			{Name: "timeouts", Pattern: "time(d )?out", IsRegex: true, WindowSeconds: 30},
		},
	}

	if err := SaveWorkspace(path, ws); err != nil {
		t.Fatalf("SaveWorkspace() error = %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	got, err := LoadWorkspace(path)
	if err != nil {
		t.Fatalf("LoadWorkspace() error = %v", err)
	}
	if got.Version != WorkspaceVersion {
		t.Errorf("Version = %d", got.Version)
	}
	if len(got.Sources) != 2 || got.Sources[0].Alias != "api" || got.Sources[1].Visible {
		t.Errorf("sources = %+v", got.Sources)
	}
	if got.MaxLinesPerFile != 1000 || !got.ShowLineRateWarning {
		t.Errorf("limits = %d %v", got.MaxLinesPerFile, got.ShowLineRateWarning)
	}
	p, ok := got.Preset("timeouts")
	if !ok || !p.IsRegex || p.WindowSeconds != 30 {
		t.Errorf("preset = %+v, %v", p, ok)
	}
}

func TestLoadWorkspace_Defaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "ws.yaml", `
sources:
  - path: /var/log/app.log
`)
	ws, err := LoadWorkspace(path)
	if err != nil {
		t.Fatalf("LoadWorkspace() error = %v", err)
	}
	if !ws.Sources[0].Visible {
		t.Error("a source without a visible key should be visible")
	}
	if !ws.ShowLineRateWarning {
		t.Error("line rate warning should default to on")
	}
}

func TestLoadWorkspace_Errors(t *testing.T) {
	_, err := LoadWorkspace(filepath.Join(t.TempDir(), "none.yaml"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing workspace error = %v, want fs.ErrNotExist", err)
	}

	dir := t.TempDir()
	for name, content := range map[string]string{
		"dup.yaml":    "sources:\n  - path: a\n  - path: a\n",
		"level.yaml":  "presets:\n  - name: x\n    levels: [LOUD]\n",
		"noname.yaml": "presets:\n  - pattern: x\n",
	} {
		if _, err := LoadWorkspace(writeFile(t, dir, name, content)); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}
