package types

import (
	"fmt"
	"time"
)

// SourceState is the ingestion state of a LogSource
type SourceState string

const (
	StatePending    SourceState = "pending"
	StateLoading    SourceState = "loading"
	StateLoaded     SourceState = "loaded"
	StateLoadFailed SourceState = "load_failed"
	StateCancelled  SourceState = "cancelled"
)

// Terminal reports whether no load is in flight for the state
func (s SourceState) Terminal() bool {
	switch s {
	case StateLoaded, StateLoadFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// LogSource represents one ingested file
type LogSource struct {
	ID        string      `json:"id" yaml:"id"`
	Name      string      `json:"name" yaml:"name"`
	Alias     string      `json:"alias" yaml:"alias"`
	Path      string      `json:"path" yaml:"path"`
	Size      int64       `json:"size" yaml:"size"`
	LineCount int         `json:"line_count" yaml:"line_count"`
	Visible   bool        `json:"visible" yaml:"visible"`
	Color     string      `json:"color,omitempty" yaml:"color,omitempty"`
	Watched   bool        `json:"watched" yaml:"watched"`
	State     SourceState `json:"state" yaml:"state"`
	Truncated bool        `json:"truncated,omitempty" yaml:"truncated,omitempty"`
	LastError string      `json:"last_error,omitempty" yaml:"last_error,omitempty"`
}

// DisplayName returns the alias, falling back to the file name
func (s *LogSource) DisplayName() string {
	if s.Alias != "" {
		return s.Alias
	}
	return s.Name
}

// FileSizeFormatted renders Size as B, KB, MB or GB
func (s *LogSource) FileSizeFormatted() string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case s.Size < kb:
		return fmt.Sprintf("%d B", s.Size)
	case s.Size < mb:
		return fmt.Sprintf("%.1f KB", float64(s.Size)/kb)
	case s.Size < gb:
		return fmt.Sprintf("%.1f MB", float64(s.Size)/mb)
	default:
		return fmt.Sprintf("%.1f GB", float64(s.Size)/gb)
	}
}

// LogRecord represents one parsed line. SourceID is a key into the
// store's source table, never a pointer to the source.
type LogRecord struct {
	Content      string    `json:"content"`
	SourceID     string    `json:"source_id"`
	LineNumber   int       `json:"line_number"`
	Timestamp    time.Time `json:"timestamp"`
	HasTimestamp bool      `json:"has_timestamp"`

	// Signature is filled lazily by pattern detection
	Signature string `json:"-"`
}

// Occurrence is a single hit of an ErrorPattern
type Occurrence struct {
	Timestamp    time.Time `json:"timestamp"`
	HasTimestamp bool      `json:"has_timestamp"`
	Content      string    `json:"content"`
	SourceAlias  string    `json:"source_alias"`
	Level        string    `json:"level"`
}

// ErrorPattern is a detected recurring error class
type ErrorPattern struct {
	Name         string       `json:"name"`
	Pattern      string       `json:"pattern"`
	Custom       bool         `json:"custom"`
	Occurrences  []Occurrence `json:"occurrences"`
	Count        int          `json:"count"`
	First        time.Time    `json:"first"`
	Last         time.Time    `json:"last"`
	HasTimeRange bool         `json:"has_time_range"`
}

// Span returns Last - First, or zero without a time range
func (p *ErrorPattern) Span() time.Duration {
	if !p.HasTimeRange {
		return 0
	}
	return p.Last.Sub(p.First)
}

// AveragePerHour returns occurrences per hour over Span. An empty span
// reports the raw count.
func (p *ErrorPattern) AveragePerHour() float64 {
	hours := p.Span().Hours()
	if hours <= 0 {
		return float64(p.Count)
	}
	return float64(p.Count) / hours
}

// SignatureCount is one row of the analytics error summary
type SignatureCount struct {
	Signature string `json:"signature"`
	Count     int    `json:"count"`
	Example   string `json:"example"`
}

// AnalyticsSnapshot is a read-only summary of a record set
type AnalyticsSnapshot struct {
	TotalRecords     int                `json:"total_records"`
	AverageLength    float64            `json:"average_length"`
	UniqueMessages   int                `json:"unique_messages"`
	LevelCounts      map[string]int     `json:"level_counts"`
	LevelPercentages map[string]float64 `json:"level_percentages"`

	TimestampedRecords int            `json:"timestamped_records"`
	HasTimeRange       bool           `json:"has_time_range"`
	First              time.Time      `json:"first"`
	Last               time.Time      `json:"last"`
	Span               time.Duration  `json:"span"`
	HourlyCounts       map[string]int `json:"hourly_counts"`
	HourOfDay          [24]int        `json:"hour_of_day"`
	PeakHours          []string       `json:"peak_hours"`
	PeakCount          int            `json:"peak_count"`

	ErrorSummary []SignatureCount `json:"error_summary"`
	Version      uint64           `json:"version"`
}
