package parser

import (
	"fmt"
	"sync"

	"github.com/therealutkarshpriyadarshi/logview/internal/timestamp"
)

// Registry holds the parsers available for ingestion. Select returns the
// first registered parser that claims a path, falling back to the default.
type Registry struct {
	mu       sync.RWMutex
	parsers  []LineParser
	fallback LineParser
}

// NewRegistry creates a registry whose default is fallback. A nil fallback
// means a TextParser.
func NewRegistry(fallback LineParser) *Registry {
	if fallback == nil {
		fallback = NewTextParser(nil)
	}
	return &Registry{fallback: fallback}
}

// FromConfig builds a registry holding every declared parser in order
func FromConfig(configs []ParserConfig, resolver *timestamp.Resolver) (*Registry, error) {
	if resolver == nil {
		resolver = timestamp.NewResolver()
	}
	reg := NewRegistry(NewTextParser(resolver))
	for i := range configs {
		p, err := New(&configs[i], resolver)
		if err != nil {
			return nil, fmt.Errorf("parser %d (%s): %w", i, configs[i].Name, err)
		}
		if err := reg.Register(p); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Register adds a parser. Names must be unique.
func (r *Registry) Register(p LineParser) error {
	if p == nil {
		return fmt.Errorf("parser is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if p.Name() == r.fallback.Name() {
		return fmt.Errorf("parser %q already registered", p.Name())
	}
	for _, existing := range r.parsers {
		if existing.Name() == p.Name() {
			return fmt.Errorf("parser %q already registered", p.Name())
		}
	}
	r.parsers = append(r.parsers, p)
	return nil
}

// Select returns the parser for path
func (r *Registry) Select(path string) LineParser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.parsers {
		if p.CanParse(path) {
			return p
		}
	}
	return r.fallback
}

// Default returns the fallback parser
func (r *Registry) Default() LineParser {
	return r.fallback
}

// Parsers returns the default parser followed by the registered ones
func (r *Registry) Parsers() []LineParser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]LineParser, 0, len(r.parsers)+1)
	out = append(out, r.fallback)
	out = append(out, r.parsers...)
	return out
}
