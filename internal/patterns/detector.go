// Package patterns finds recurring error classes in a record set. Each call
// to Detect is a full rescan; no state is carried between runs.
package patterns

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/therealutkarshpriyadarshi/logview/internal/level"
	"github.com/therealutkarshpriyadarshi/logview/internal/signature"
	"github.com/therealutkarshpriyadarshi/logview/pkg/types"
)

const (
	// DefaultMinClusterSize is the smallest custom cluster reported
	DefaultMinClusterSize = 3

	// CustomPrefix marks patterns discovered by clustering
	CustomPrefix = "Custom: "

	shortDescWords = 5
	shortDescMax   = 50
)

// CatalogEntry is one known error class
type CatalogEntry struct {
	Name    string
	Pattern string
}

// DefaultCatalog returns the known error classes in detection order
func DefaultCatalog() []CatalogEntry {
	return []CatalogEntry{
		{"Exception", `Exception|exception`},
		{"Stack Trace", `at\s+\w+[\w\.<>]+\([^\)]*\)`},
		{"Null Reference", `NullReferenceException|null reference|Object reference not set`},
		{"File Not Found", `FileNotFoundException|Could not find file|File not found`},
		{"Connection Error", `Connection.*failed|Unable to connect|Connection timeout`},
		{"Access Denied", `Access.*denied|Unauthorized|Permission denied`},
		{"Out of Memory", `OutOfMemoryException|Insufficient memory`},
		{"SQL Error", `SQLException|SQL.*error|Database.*error`},
		{"Timeout", `Timeout|timed out|Request timeout`},
		{"404 Error", `404|Not Found`},
		{"500 Error", `500|Internal Server Error`},
		{"Authentication Failed", `Authentication.*failed|Login failed|Invalid credentials`},
	}
}

type compiledEntry struct {
	CatalogEntry
	re *regexp.Regexp
}

// Detector runs the catalog pass and the custom clustering pass
type Detector struct {
	catalog        []compiledEntry
	minClusterSize int
}

// Option configures a Detector
type Option func(*Detector)

// WithMinClusterSize overrides the custom cluster threshold
func WithMinClusterSize(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.minClusterSize = n
		}
	}
}

// WithCatalog replaces the known error classes
func WithCatalog(entries []CatalogEntry) Option {
	return func(d *Detector) {
		d.catalog = compile(entries)
	}
}

// NewDetector creates a detector with the default catalog
func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		catalog:        compile(DefaultCatalog()),
		minClusterSize: DefaultMinClusterSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func compile(entries []CatalogEntry) []compiledEntry {
	out := make([]compiledEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, compiledEntry{
			CatalogEntry: e,
			re:           regexp.MustCompile("(?i)" + e.Pattern),
		})
	}
	return out
}

// Detect returns every materialized pattern sorted by count, descending.
// Ties keep catalog order, then first-seen order of custom clusters.
// aliasOf resolves a record's source alias and may be nil.
func (d *Detector) Detect(records []*types.LogRecord, aliasOf func(id string) string) []types.ErrorPattern {
	if aliasOf == nil {
		aliasOf = func(string) string { return "" }
	}

	var out []types.ErrorPattern
	taken := make(map[string]bool)

	for _, entry := range d.catalog {
		var occ []types.Occurrence
		for _, rec := range records {
			if entry.re.MatchString(rec.Content) {
				occ = append(occ, occurrence(rec, aliasOf))
			}
		}
		if len(occ) == 0 {
			continue
		}
		out = append(out, materialize(entry.Name, entry.Pattern, false, occ))
		taken[entry.Name] = true
	}

	out = append(out, d.cluster(records, aliasOf, taken)...)

	slices.SortStableFunc(out, func(a, b types.ErrorPattern) int {
		return b.Count - a.Count
	})
	return out
}

func (d *Detector) cluster(records []*types.LogRecord, aliasOf func(string) string, taken map[string]bool) []types.ErrorPattern {
	groups := make(map[string][]types.Occurrence)
	var order []string

	for _, rec := range records {
		if level.Extract(rec.Content) != level.Error {
			continue
		}
		sig := rec.Signature
		if sig == "" {
			sig = signature.Normalize(rec.Content)
		}
		if sig == "" {
			continue
		}
		if _, seen := groups[sig]; !seen {
			order = append(order, sig)
		}
		groups[sig] = append(groups[sig], occurrence(rec, aliasOf))
	}

	var out []types.ErrorPattern
	for _, sig := range order {
		occ := groups[sig]
		if len(occ) < d.minClusterSize {
			continue
		}
		name := uniqueName(CustomPrefix+ShortDescription(sig), taken)
		taken[name] = true
		out = append(out, materialize(name, sig, true, occ))
	}
	return out
}

// uniqueName numbers custom names whose short descriptions collide
func uniqueName(name string, taken map[string]bool) string {
	if !taken[name] {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s (%d)", name, i)
		if !taken[candidate] {
			return candidate
		}
	}
}

// ShortDescription keeps the first five words, cut to 50 characters
func ShortDescription(sig string) string {
	words := strings.Split(sig, " ")
	if len(words) > shortDescWords {
		words = words[:shortDescWords]
	}
	desc := strings.Join(words, " ")
	if utf8.RuneCountInString(desc) > shortDescMax {
		desc = string([]rune(desc)[:shortDescMax-3]) + "..."
	}
	return desc
}

func occurrence(rec *types.LogRecord, aliasOf func(string) string) types.Occurrence {
	return types.Occurrence{
		Timestamp:    rec.Timestamp,
		HasTimestamp: rec.HasTimestamp,
		Content:      rec.Content,
		SourceAlias:  aliasOf(rec.SourceID),
		Level:        level.Extract(rec.Content),
	}
}

// materialize sets First and Last from timestamped occurrences only
func materialize(name, pattern string, custom bool, occ []types.Occurrence) types.ErrorPattern {
	p := types.ErrorPattern{
		Name:        name,
		Pattern:     pattern,
		Custom:      custom,
		Occurrences: occ,
		Count:       len(occ),
	}
	for _, o := range occ {
		if !o.HasTimestamp {
			continue
		}
		if !p.HasTimeRange || o.Timestamp.Before(p.First) {
			p.First = o.Timestamp
		}
		if !p.HasTimeRange || o.Timestamp.After(p.Last) {
			p.Last = o.Timestamp
		}
		p.HasTimeRange = true
	}
	return p
}
