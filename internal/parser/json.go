package parser

import (
	"context"
	"encoding/json"
	"iter"
	"time"

	"github.com/therealutkarshpriyadarshi/logview/internal/timestamp"
	"github.com/therealutkarshpriyadarshi/logview/pkg/types"
)

var (
	defaultTimeFields = []string{"timestamp", "time", "ts", "@timestamp"}
)

// JSONParser parses JSON-lines logs. Content stays the raw line so level
// extraction and search see every field.
type JSONParser struct {
	name       string
	extensions []string
	timeField  string
	timeFormat string
	resolver   *timestamp.Resolver
}

// NewJSONParser creates a new JSON parser
func NewJSONParser(cfg *ParserConfig, resolver *timestamp.Resolver) (*JSONParser, error) {
	if resolver == nil {
		resolver = timestamp.NewResolver()
	}
	exts := cfg.Extensions
	if len(exts) == 0 {
		exts = []string{".json", ".jsonl", ".ndjson"}
	}
	name := cfg.Name
	if name == "" {
		name = "json"
	}
	return &JSONParser{
		name:       name,
		extensions: exts,
		timeField:  cfg.TimeField,
		timeFormat: cfg.TimeFormat,
		resolver:   resolver,
	}, nil
}

// Name returns the parser name
func (p *JSONParser) Name() string {
	return p.name
}

// Description returns the parser description
func (p *JSONParser) Description() string {
	return "JSON lines logs with a timestamp field"
}

// Extensions returns the claimed extensions
func (p *JSONParser) Extensions() []string {
	return p.extensions
}

// CanParse reports whether path has a claimed extension
func (p *JSONParser) CanParse(path string) bool {
	return MatchExtension(p.extensions, path)
}

// Parse yields one record per non-blank line
func (p *JSONParser) Parse(ctx context.Context, path string) iter.Seq2[*types.LogRecord, error] {
	return scanFile(ctx, path, p.decode)
}

func (p *JSONParser) decode(line string, lineNumber int) (*types.LogRecord, error) {
	rec := &types.LogRecord{
		Content:    line,
		LineNumber: lineNumber,
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(line), &data); err != nil {
		// Not JSON, keep the raw line without a timestamp
		return rec, nil
	}

	fields := defaultTimeFields
	if p.timeField != "" {
		fields = []string{p.timeField}
	}

	for _, field := range fields {
		val, ok := data[field]
		if !ok {
			continue
		}
		if ts, ok := p.parseTime(val); ok {
			rec.Timestamp = ts
			rec.HasTimestamp = true
		}
		break
	}

	return rec, nil
}

func (p *JSONParser) parseTime(val interface{}) (time.Time, bool) {
	switch v := val.(type) {
	case string:
		if p.timeFormat != "" {
			ts, err := time.ParseInLocation(p.timeFormat, v, time.Local)
			return ts, err == nil
		}
		return p.resolver.Resolve(v)
	case float64:
		return parseUnix(v), true
	default:
		return time.Time{}, false
	}
}

// parseUnix treats values above 1e12 as milliseconds
func parseUnix(v float64) time.Time {
	if v > 1e12 {
		return time.UnixMilli(int64(v))
	}
	sec := int64(v)
	nsec := int64((v - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
