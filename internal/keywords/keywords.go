// Package keywords matches configured words inside log content for
// highlighting and keyword-filtered exports. A Set is immutable once built.
package keywords

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

var defaultKeywords = []string{
	"Error", "Exception", "Warning", "Critical", "Fatal", "Failed", "Timeout", "Null", "Invalid",
	"Denied", "Unauthorized", "Forbidden", "NotFound", "Crash", "Abort", "Panic", "Alert",
	"Emergency", "Severe", "High", "Medium", "Low", "Debug", "Info", "Trace", "Success",
	"Complete", "Started", "Stopped", "Connected", "Disconnected", "Retry", "Attempt",
	"Backup", "Restore", "Update", "Delete", "Create", "Insert", "Select", "Query",
	"Database", "Connection", "Network", "Memory", "CPU", "Disk", "Performance",
	"Authentication", "Authorization", "Login", "Logout", "Session", "Token",
}

// separators split content into words
const separators = " \t\n\r.,;:!?()[]{}<>\"'/\\|=+-*&%$#@~`"

// DefaultKeywords returns the built-in keyword list
func DefaultKeywords() []string {
	return slices.Clone(defaultKeywords)
}

// Set is a case-insensitive keyword set
type Set struct {
	words map[string]string
}

// New builds a set, ignoring blanks and case-insensitive duplicates
func New(words ...string) *Set {
	s := &Set{words: make(map[string]string, len(words))}
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		key := strings.ToLower(w)
		if _, ok := s.words[key]; !ok {
			s.words[key] = w
		}
	}
	return s
}

// Default returns a set holding DefaultKeywords
func Default() *Set {
	return New(defaultKeywords...)
}

// Parse splits a keyword list on commas, semicolons and newlines
func Parse(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n' || r == '\r'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// LoadFile reads a keyword list file
func LoadFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keywords file: %w", err)
	}
	return New(Parse(string(data))...), nil
}

// Len returns the number of keywords
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.words)
}

// Contains reports whether word is a keyword
func (s *Set) Contains(word string) bool {
	if s == nil {
		return false
	}
	_, ok := s.words[strings.ToLower(word)]
	return ok
}

// Words returns the keywords sorted case-insensitively
func (s *Set) Words() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.words))
	for _, w := range s.words {
		out = append(out, w)
	}
	slices.SortFunc(out, func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	})
	return out
}

// ContainsAny reports whether any word of content is a keyword
func (s *Set) ContainsAny(content string) bool {
	if s.Len() == 0 {
		return false
	}
	for _, seg := range s.Highlight(content) {
		if seg.Highlighted {
			return true
		}
	}
	return false
}

// Segment is a run of content, highlighted when it is a keyword
type Segment struct {
	Text        string
	Highlighted bool
}

// Highlight splits content into word and separator runs. Concatenating
// the segments gives back content.
func (s *Set) Highlight(content string) []Segment {
	if content == "" {
		return nil
	}
	if s.Len() == 0 {
		return []Segment{{Text: content}}
	}

	var segs []Segment
	start := 0
	inWord := false
	flush := func(end int) {
		if end <= start {
			return
		}
		text := content[start:end]
		segs = append(segs, Segment{Text: text, Highlighted: inWord && s.Contains(text)})
		start = end
	}

	for i, r := range content {
		isSep := strings.ContainsRune(separators, r)
		if i == 0 {
			inWord = !isSep
			continue
		}
		if isSep == inWord {
			flush(i)
			inWord = !isSep
		}
	}
	flush(len(content))
	return segs
}
