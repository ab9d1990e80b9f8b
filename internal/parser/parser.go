package parser

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/therealutkarshpriyadarshi/logview/internal/logerr"
	"github.com/therealutkarshpriyadarshi/logview/internal/timestamp"
	"github.com/therealutkarshpriyadarshi/logview/pkg/types"
)

// LineParser turns a file into a lazy sequence of records. Every call to
// Parse starts a fresh pass over the file; a sequence cannot be resumed.
type LineParser interface {
	// Name returns the parser name
	Name() string

	// Description returns a human readable description
	Description() string

	// Extensions returns the file extensions the parser claims, with dot
	Extensions() []string

	// CanParse reports whether the parser handles path
	CanParse(path string) bool

	// Parse yields the records of path. Records carry no SourceID; the
	// caller stamps it. The sequence stops at the first error.
	Parse(ctx context.Context, path string) iter.Seq2[*types.LogRecord, error]
}

// ParserType represents different parser types
type ParserType string

const (
	ParserTypeText  ParserType = "text"
	ParserTypeRegex ParserType = "regex"
	ParserTypeJSON  ParserType = "json"
)

// ParserConfig declares an externally supplied parser
type ParserConfig struct {
	Name        string     `yaml:"name"`
	Type        ParserType `yaml:"type"`
	Description string     `yaml:"description,omitempty"`
	Extensions  []string   `yaml:"extensions"`
	Pattern     string     `yaml:"pattern,omitempty"`     // For regex parsers
	TimeFormat  string     `yaml:"time_format,omitempty"` // Time parsing layout
	TimeField   string     `yaml:"time_field,omitempty"`  // Named group or JSON key holding the timestamp
}

// New creates a parser from its declaration
func New(cfg *ParserConfig, resolver *timestamp.Resolver) (LineParser, error) {
	if cfg == nil {
		return nil, fmt.Errorf("parser configuration is nil")
	}
	if resolver == nil {
		resolver = timestamp.NewResolver()
	}

	switch cfg.Type {
	case ParserTypeText:
		return NewScopedTextParser(cfg, resolver)
	case ParserTypeRegex:
		return NewRegexParser(cfg, resolver)
	case ParserTypeJSON:
		return NewJSONParser(cfg, resolver)
	default:
		return nil, fmt.Errorf("unknown parser type: %s", cfg.Type)
	}
}

// MatchExtension reports whether path ends in one of exts, ignoring case.
// A "*" entry matches every path.
func MatchExtension(exts []string, path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		e = strings.ToLower(e)
		if e == "*" {
			return true
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if e == ext {
			return true
		}
	}
	return false
}

// lineDecoder turns one non-blank line into a record
type lineDecoder func(line string, lineNumber int) (*types.LogRecord, error)

// scanFile yields one record per non-blank line of path. Line numbers count
// non-blank lines from 1.
func scanFile(ctx context.Context, path string, decode lineDecoder) iter.Seq2[*types.LogRecord, error] {
	return func(yield func(*types.LogRecord, error) bool) {
		file, err := os.Open(path)
		if err != nil {
			yield(nil, logerr.New(logerr.KindSourceLoad, "open", path, err))
			return
		}
		defer file.Close()

		reader := bufio.NewReaderSize(file, 64*1024)
		lineNumber := 0

		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			line, readErr := reader.ReadString('\n')
			if readErr != nil && !errors.Is(readErr, io.EOF) {
				yield(nil, logerr.New(logerr.KindSourceLoad, "read", path, readErr))
				return
			}

			line = strings.TrimRight(line, "\r\n")
			if strings.TrimSpace(line) != "" {
				lineNumber++
				rec, err := decode(line, lineNumber)
				if err != nil {
					yield(nil, logerr.New(logerr.KindParse, fmt.Sprintf("line %d", lineNumber), path, err))
					return
				}
				if !yield(rec, nil) {
					return
				}
			}

			if errors.Is(readErr, io.EOF) {
				return
			}
		}
	}
}
