package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/therealutkarshpriyadarshi/logview/internal/logging"
	"github.com/therealutkarshpriyadarshi/logview/internal/parser"
	"github.com/therealutkarshpriyadarshi/logview/internal/profiling"
	"github.com/therealutkarshpriyadarshi/logview/internal/reliability"
	"github.com/therealutkarshpriyadarshi/logview/internal/tracing"
	"github.com/therealutkarshpriyadarshi/logview/internal/watcher"
	"github.com/therealutkarshpriyadarshi/logview/internal/worker"
)

// Config represents the main configuration
type Config struct {
	Logging   LoggingConfig         `yaml:"logging"`
	Limits    LimitsConfig          `yaml:"limits"`
	Ingest    IngestConfig          `yaml:"ingest"`
	Watch     WatchConfig           `yaml:"watch"`
	Parsers   []parser.ParserConfig `yaml:"parsers,omitempty"`
	Keywords  KeywordsConfig        `yaml:"keywords"`
	Metrics   MetricsConfig         `yaml:"metrics"`
	Tracing   TracingConfig         `yaml:"tracing"`
	Workspace WorkspaceConfig       `yaml:"workspace"`
	Profiling profiling.Config      `yaml:"profiling"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// LimitsConfig bounds what a session holds in memory
type LimitsConfig struct {
	MaxSources          int   `yaml:"max_sources"`
	MaxDisplayedRecords int   `yaml:"max_displayed_records"`
	MaxLinesPerFile     int   `yaml:"max_lines_per_file"`
	ShowLineRateWarning *bool `yaml:"show_line_rate_warning,omitempty"`
}

// IngestConfig sizes the background load workers
type IngestConfig struct {
	Workers    int           `yaml:"workers"`
	QueueSize  int           `yaml:"queue_size"`
	JobTimeout time.Duration `yaml:"job_timeout"`
	BatchSize  int           `yaml:"batch_size"`
}

// WatchConfig controls live reload of watched files
type WatchConfig struct {
	Enabled           bool          `yaml:"enabled"`
	Debounce          time.Duration `yaml:"debounce"`
	MinReloadInterval time.Duration `yaml:"min_reload_interval"`
	Retry             RetryConfig   `yaml:"retry"`
}

// RetryConfig holds reload retry configuration
type RetryConfig struct {
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff,omitempty"`
	MaxBackoff     time.Duration `yaml:"max_backoff,omitempty"`
	Multiplier     float64       `yaml:"multiplier,omitempty"`
	Jitter         bool          `yaml:"jitter,omitempty"`
}

// KeywordsConfig seeds the keyword highlighter
type KeywordsConfig struct {
	Words []string `yaml:"words,omitempty"`
	File  string   `yaml:"file,omitempty"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path,omitempty"`
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint,omitempty"`
	SampleRate float64 `yaml:"sample_rate,omitempty"`
}

// WorkspaceConfig locates the persisted workspace document
type WorkspaceConfig struct {
	Path             string        `yaml:"path"`
	AutosaveInterval time.Duration `yaml:"autosave_interval"`
}

// Default values
const (
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "console"
	DefaultMaxSources          = 20
	DefaultMaxDisplayedRecords = 10000
	DefaultMaxLinesPerFile     = 50000
	DefaultWorkers             = 4
	DefaultQueueSize           = 64
	DefaultJobTimeout          = 10 * time.Minute
	DefaultBatchSize           = 1000
	DefaultDebounce            = 500 * time.Millisecond
	DefaultMetricsAddress      = "127.0.0.1:9090"
	DefaultMetricsPath         = "/metrics"
	DefaultWorkspacePath       = "logview-workspace.yaml"
	DefaultAutosaveInterval    = 2 * time.Second
)

// Load loads configuration from a YAML file with environment variable overrides
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(expandedData, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault loads configuration from path, or returns the default
// configuration when path is empty or does not exist. Other errors are
// returned.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	return Load(path)
}

// applyDefaults sets default values for unspecified configuration
func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}

	if c.Limits.MaxSources == 0 {
		c.Limits.MaxSources = DefaultMaxSources
	}
	if c.Limits.MaxDisplayedRecords == 0 {
		c.Limits.MaxDisplayedRecords = DefaultMaxDisplayedRecords
	}
	if c.Limits.MaxLinesPerFile == 0 {
		c.Limits.MaxLinesPerFile = DefaultMaxLinesPerFile
	}
	if c.Limits.ShowLineRateWarning == nil {
		enabled := true
		c.Limits.ShowLineRateWarning = &enabled
	}

	if c.Ingest.Workers == 0 {
		c.Ingest.Workers = DefaultWorkers
	}
	if c.Ingest.QueueSize == 0 {
		c.Ingest.QueueSize = DefaultQueueSize
	}
	if c.Ingest.JobTimeout == 0 {
		c.Ingest.JobTimeout = DefaultJobTimeout
	}
	if c.Ingest.BatchSize == 0 {
		c.Ingest.BatchSize = DefaultBatchSize
	}

	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = DefaultDebounce
	}

	if c.Metrics.Address == "" {
		c.Metrics.Address = DefaultMetricsAddress
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = 1.0
	}

	if c.Workspace.Path == "" {
		c.Workspace.Path = DefaultWorkspacePath
	}
	if c.Workspace.AutosaveInterval == 0 {
		c.Workspace.AutosaveInterval = DefaultAutosaveInterval
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true, "console": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Limits.MaxSources < 1 {
		return fmt.Errorf("limits.max_sources must be positive")
	}
	if c.Limits.MaxDisplayedRecords < 1 {
		return fmt.Errorf("limits.max_displayed_records must be positive")
	}
	if c.Limits.MaxLinesPerFile < 1 {
		return fmt.Errorf("limits.max_lines_per_file must be positive")
	}

	if c.Ingest.Workers < 1 {
		return fmt.Errorf("ingest.workers must be positive")
	}
	if c.Ingest.QueueSize < 1 {
		return fmt.Errorf("ingest.queue_size must be positive")
	}
	if c.Ingest.JobTimeout < 0 {
		return fmt.Errorf("ingest.job_timeout must be non-negative")
	}

	if c.Watch.Debounce < 0 || c.Watch.MinReloadInterval < 0 {
		return fmt.Errorf("watch intervals must be non-negative")
	}
	if c.Watch.Retry.MaxRetries < 0 {
		return fmt.Errorf("watch.retry.max_retries must be non-negative")
	}

	names := make(map[string]bool)
	for i, p := range c.Parsers {
		if p.Name == "" {
			return fmt.Errorf("parser %d has no name configured", i)
		}
		if names[p.Name] {
			return fmt.Errorf("parser %q is defined twice", p.Name)
		}
		names[p.Name] = true
		switch p.Type {
		case parser.ParserTypeRegex:
			if p.Pattern == "" {
				return fmt.Errorf("parser %q: regex parser requires a pattern", p.Name)
			}
		case parser.ParserTypeText:
			if len(p.Extensions) == 0 {
				return fmt.Errorf("parser %q: text parser requires extensions", p.Name)
			}
		case parser.ParserTypeJSON:
		default:
			return fmt.Errorf("parser %q: unsupported type %q", p.Name, p.Type)
		}
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing.sample_rate must be between 0 and 1")
	}

	if c.Workspace.AutosaveInterval < 0 {
		return fmt.Errorf("workspace.autosave_interval must be non-negative")
	}

	if c.Profiling.Interval < 0 || c.Profiling.GoroutineThreshold < 0 {
		return fmt.Errorf("profiling interval and goroutine_threshold must be non-negative")
	}

	return nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LineRateWarning reports whether oversized files ask before continuing
func (c *Config) LineRateWarning() bool {
	return c.Limits.ShowLineRateWarning == nil || *c.Limits.ShowLineRateWarning
}

// LoggerConfig converts the logging section
func (c *Config) LoggerConfig() logging.Config {
	return logging.Config{Level: c.Logging.Level, Format: c.Logging.Format}
}

// PoolConfig converts the ingest section
func (c *Config) PoolConfig() worker.PoolConfig {
	return worker.PoolConfig{
		NumWorkers: c.Ingest.Workers,
		QueueSize:  c.Ingest.QueueSize,
		JobTimeout: c.Ingest.JobTimeout,
	}
}

// WatcherConfig converts the watch section
func (c *Config) WatcherConfig() watcher.Config {
	return watcher.Config{
		Debounce:          c.Watch.Debounce,
		MinReloadInterval: c.Watch.MinReloadInterval,
	}
}

// ReloadRetry converts the watch retry section
func (c *Config) ReloadRetry() reliability.RetryConfig {
	r := c.Watch.Retry
	return reliability.RetryConfig{
		MaxRetries:     r.MaxRetries,
		InitialBackoff: r.InitialBackoff,
		MaxBackoff:     r.MaxBackoff,
		Multiplier:     r.Multiplier,
		Jitter:         r.Jitter,
	}
}

// TracerConfig converts the tracing section
func (c *Config) TracerConfig() tracing.Config {
	return tracing.Config{
		Enabled:    c.Tracing.Enabled,
		Endpoint:   c.Tracing.Endpoint,
		SampleRate: c.Tracing.SampleRate,
	}
}
