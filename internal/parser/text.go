package parser

import (
	"context"
	"fmt"
	"iter"

	"github.com/therealutkarshpriyadarshi/logview/internal/timestamp"
	"github.com/therealutkarshpriyadarshi/logview/pkg/types"
)

// TextParser is the built-in parser: every non-blank line becomes a record
// and the timestamp is resolved from the line text.
type TextParser struct {
	name        string
	description string
	extensions  []string
	scoped      bool
	resolver    *timestamp.Resolver
}

// NewTextParser creates the default text parser, which accepts any path
func NewTextParser(resolver *timestamp.Resolver) *TextParser {
	if resolver == nil {
		resolver = timestamp.NewResolver()
	}
	return &TextParser{
		name:        "text",
		description: "Plain text logs with ISO-8601, syslog, US, European, Apache or time-only stamps",
		extensions:  []string{".log", ".txt", "*"},
		resolver:    resolver,
	}
}

// NewScopedTextParser creates a declared text parser that only claims the
// extensions of cfg
func NewScopedTextParser(cfg *ParserConfig, resolver *timestamp.Resolver) (*TextParser, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("text parser requires a name")
	}
	if len(cfg.Extensions) == 0 {
		return nil, fmt.Errorf("text parser %q claims no extensions", cfg.Name)
	}

	p := NewTextParser(resolver)
	p.name = cfg.Name
	p.extensions = cfg.Extensions
	p.scoped = true
	if cfg.Description != "" {
		p.description = cfg.Description
	}
	return p, nil
}

// Name returns the parser name
func (p *TextParser) Name() string {
	return p.name
}

// Description returns the parser description
func (p *TextParser) Description() string {
	return p.description
}

// Extensions returns the claimed extensions
func (p *TextParser) Extensions() []string {
	return p.extensions
}

// CanParse accepts any path, or only the declared extensions when scoped
func (p *TextParser) CanParse(path string) bool {
	if !p.scoped {
		return true
	}
	return MatchExtension(p.extensions, path)
}

// Parse yields one record per non-blank line
func (p *TextParser) Parse(ctx context.Context, path string) iter.Seq2[*types.LogRecord, error] {
	return scanFile(ctx, path, p.decode)
}

func (p *TextParser) decode(line string, lineNumber int) (*types.LogRecord, error) {
	rec := &types.LogRecord{
		Content:    line,
		LineNumber: lineNumber,
	}
	if ts, ok := p.resolver.Resolve(line); ok {
		rec.Timestamp = ts
		rec.HasTimestamp = true
	}
	return rec, nil
}
