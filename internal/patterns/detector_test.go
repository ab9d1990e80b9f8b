package patterns

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/therealutkarshpriyadarshi/logview/pkg/types"
)

var base = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func records(lines ...string) []*types.LogRecord {
	out := make([]*types.LogRecord, len(lines))
	for i, line := range lines {
		out[i] = &types.LogRecord{
			Content:      line,
			SourceID:     "src",
			LineNumber:   i + 1,
			Timestamp:    base.Add(time.Duration(i) * time.Minute),
			HasTimestamp: true,
		}
	}
	return out
}

func alias(string) string { return "app" }

func find(patterns []types.ErrorPattern, name string) *types.ErrorPattern {
	for i := range patterns {
		if patterns[i].Name == name {
			return &patterns[i]
		}
	}
	return nil
}

func TestDetect_CustomClusterScenario(t *testing.T) {
	var lines []string
	for i := 1; i <= 5; i++ {
		lines = append(lines, fmt.Sprintf("2024-01-01 10:00:0%d ERROR connection to db 10.0.0.%d refused", i, i))
	}
	lines = append(lines, "ERROR disk quota reached for user alice", "ERROR cache eviction storm")

	got := NewDetector().Detect(records(lines...), alias)

	var custom []types.ErrorPattern
	for _, p := range got {
		if p.Custom {
			custom = append(custom, p)
		}
	}
	if len(custom) != 1 {
		t.Fatalf("custom patterns = %d, want 1: %+v", len(custom), custom)
	}
	p := custom[0]
	if p.Count != 5 || len(p.Occurrences) != 5 {
		t.Errorf("Count = %d, want 5", p.Count)
	}
	if p.Pattern != "[TIMESTAMP] ERROR connection to db [IP] refused" {
		t.Errorf("Pattern = %q", p.Pattern)
	}
	if p.Name != "Custom: [TIMESTAMP] ERROR connection to db" {
		t.Errorf("Name = %q", p.Name)
	}
	if p.Occurrences[0].SourceAlias != "app" || p.Occurrences[0].Level != "ERROR" {
		t.Errorf("occurrence = %+v", p.Occurrences[0])
	}
}

func TestDetect_Catalog(t *testing.T) {
	recs := records(
		"INFO request ok",
		"ERROR NullReferenceException: Object reference not set",
		"WARN request TIMED OUT after 30s",
		"ERROR upstream returned 500",
		"ERROR java.lang.IllegalStateException",
		"   at com.example.Service.handle(Service.java:42)",
	)

	got := NewDetector().Detect(recs, alias)

	tests := []struct {
		name  string
		count int
	}{
		{"Exception", 2},
		{"Null Reference", 1},
		{"Timeout", 1},
		{"500 Error", 1},
		{"Stack Trace", 1},
	}
	for _, tt := range tests {
		p := find(got, tt.name)
		if p == nil {
			t.Errorf("pattern %q not detected", tt.name)
			continue
		}
		if p.Count != tt.count {
			t.Errorf("%s count = %d, want %d", tt.name, p.Count, tt.count)
		}
		if p.Custom {
			t.Errorf("%s should be a catalog pattern", tt.name)
		}
	}

	for _, absent := range []string{"SQL Error", "Out of Memory", "Access Denied"} {
		if find(got, absent) != nil {
			t.Errorf("pattern %q should not be materialized", absent)
		}
	}
}

func TestDetect_SortedByCountStable(t *testing.T) {
	recs := records(
		"Unauthorized access",
		"request timed out",
		"request timed out again",
		"Login failed for bob",
	)
	got := NewDetector().Detect(recs, nil)

	if len(got) != 3 {
		t.Fatalf("patterns = %d, want 3", len(got))
	}
	if got[0].Name != "Timeout" {
		t.Errorf("first = %s, want Timeout", got[0].Name)
	}
	// Equal counts keep catalog order
	if got[1].Name != "Access Denied" || got[2].Name != "Authentication Failed" {
		t.Errorf("tie order = %s, %s", got[1].Name, got[2].Name)
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Count < got[i].Count {
			t.Errorf("patterns not sorted by count: %d before %d", got[i-1].Count, got[i].Count)
		}
	}
}

func TestDetect_TimeRangeUsesTimestampedOnly(t *testing.T) {
	recs := records("ERROR Exception one", "ERROR Exception two", "ERROR Exception three")
	recs[0].HasTimestamp = false
	recs[0].Timestamp = time.Time{}

	got := NewDetector().Detect(recs, alias)
	p := find(got, "Exception")
	if p == nil {
		t.Fatal("Exception pattern missing")
	}
	if !p.HasTimeRange {
		t.Fatal("expected a time range")
	}
	if !p.First.Equal(base.Add(time.Minute)) || !p.Last.Equal(base.Add(2*time.Minute)) {
		t.Errorf("range = %v..%v", p.First, p.Last)
	}
	if p.Span() != time.Minute {
		t.Errorf("Span() = %s, want 1m", p.Span())
	}
	if got := p.AveragePerHour(); got < 179.99 || got > 180.01 {
		t.Errorf("AveragePerHour() = %v, want 180", got)
	}

	for _, r := range recs {
		r.HasTimestamp = false
	}
	p = find(NewDetector().Detect(recs, alias), "Exception")
	if p.HasTimeRange || !p.First.IsZero() {
		t.Errorf("untimestamped occurrences must not set a range: %+v", p)
	}
}

func TestDetect_EmptyInput(t *testing.T) {
	if got := NewDetector().Detect(nil, nil); len(got) != 0 {
		t.Errorf("Detect(nil) = %v, want none", got)
	}
}

func TestDetect_MinClusterSizeOption(t *testing.T) {
	recs := records("ERROR cache miss 1", "ERROR cache miss 2")
	if got := NewDetector().Detect(recs, nil); len(got) != 0 {
		t.Errorf("default threshold should ignore a pair: %v", got)
	}
	got := NewDetector(WithMinClusterSize(2)).Detect(recs, nil)
	if len(got) != 1 || got[0].Name != "Custom: ERROR cache miss [NUM]" {
		t.Errorf("patterns = %+v", got)
	}
}

func TestDetect_UsesPrecomputedSignature(t *testing.T) {
	recs := records("ERROR a", "ERROR b", "ERROR c")
	for _, r := range recs {
		r.Signature = "ERROR shared"
	}
	got := NewDetector().Detect(recs, nil)
	if len(got) != 1 || got[0].Count != 3 {
		t.Errorf("patterns = %+v", got)
	}
}

func TestShortDescription(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"one two", "one two"},
		{"one two three four five six", "one two three four five"},
		{strings.Repeat("x", 60), strings.Repeat("x", 47) + "..."},
		{strings.Repeat("é", 50), strings.Repeat("é", 50)},
		{strings.Repeat("é", 60), strings.Repeat("é", 47) + "..."},
		{"Ошибка: " + strings.Repeat("ж", 60), "Ошибка: " + strings.Repeat("ж", 39) + "..."},
	}
	for _, tt := range tests {
		got := ShortDescription(tt.in)
		if got != tt.want {
			t.Errorf("ShortDescription(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("ShortDescription(%q) is not valid UTF-8", tt.in)
		}
	}
}

func TestUniqueName(t *testing.T) {
	taken := map[string]bool{"Custom: a": true, "Custom: a (2)": true}
	if got := uniqueName("Custom: a", taken); got != "Custom: a (3)" {
		t.Errorf("uniqueName() = %q", got)
	}
}
