package parser

import (
	"context"
	"fmt"
	"iter"
	"regexp"
	"time"

	"github.com/therealutkarshpriyadarshi/logview/internal/timestamp"
	"github.com/therealutkarshpriyadarshi/logview/pkg/types"
)

// RegexParser parses log lines using a regular expression with named
// groups. Lines that do not match are kept as untimestamped records.
type RegexParser struct {
	name        string
	description string
	extensions  []string
	pattern     *regexp.Regexp
	timeFormat  string
	timeField   string
	resolver    *timestamp.Resolver
}

// NewRegexParser creates a new regex parser
func NewRegexParser(cfg *ParserConfig, resolver *timestamp.Resolver) (*RegexParser, error) {
	if resolver == nil {
		resolver = timestamp.NewResolver()
	}
	if cfg.Pattern == "" {
		return nil, fmt.Errorf("regex pattern is required")
	}
	if len(cfg.Extensions) == 0 {
		return nil, fmt.Errorf("regex parser %q claims no extensions", cfg.Name)
	}

	pattern, err := regexp.Compile(cfg.Pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to compile regex pattern: %w", err)
	}

	timeField := cfg.TimeField
	if timeField == "" {
		timeField = "timestamp"
	}
	name := cfg.Name
	if name == "" {
		name = "regex"
	}

	return &RegexParser{
		name:        name,
		description: cfg.Description,
		extensions:  cfg.Extensions,
		pattern:     pattern,
		timeFormat:  cfg.TimeFormat,
		timeField:   timeField,
		resolver:    resolver,
	}, nil
}

// Name returns the parser name
func (p *RegexParser) Name() string {
	return p.name
}

// Description returns the parser description
func (p *RegexParser) Description() string {
	if p.description != "" {
		return p.description
	}
	return fmt.Sprintf("Regular expression parser (%s)", p.pattern.String())
}

// Extensions returns the claimed extensions
func (p *RegexParser) Extensions() []string {
	return p.extensions
}

// CanParse reports whether path has a claimed extension
func (p *RegexParser) CanParse(path string) bool {
	return MatchExtension(p.extensions, path)
}

// Parse yields one record per non-blank line
func (p *RegexParser) Parse(ctx context.Context, path string) iter.Seq2[*types.LogRecord, error] {
	return scanFile(ctx, path, p.decode)
}

func (p *RegexParser) decode(line string, lineNumber int) (*types.LogRecord, error) {
	rec := &types.LogRecord{
		Content:    line,
		LineNumber: lineNumber,
	}

	match := p.pattern.FindStringSubmatch(line)
	if match == nil {
		return rec, nil
	}

	idx := p.pattern.SubexpIndex(p.timeField)
	if idx < 0 || idx >= len(match) || match[idx] == "" {
		return rec, nil
	}

	tsStr := match[idx]
	var (
		ts time.Time
		ok bool
	)
	if p.timeFormat != "" {
		parsed, err := time.ParseInLocation(p.timeFormat, tsStr, time.Local)
		ts, ok = parsed, err == nil
	} else {
		ts, ok = p.resolver.Resolve(tsStr)
	}
	if ok {
		rec.Timestamp = ts
		rec.HasTimestamp = true
	}

	return rec, nil
}
