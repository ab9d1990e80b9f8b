package analytics

import (
	"slices"
	"strings"

	"github.com/therealutkarshpriyadarshi/logview/internal/keywords"
	"github.com/therealutkarshpriyadarshi/logview/pkg/types"
)

// DefaultRecurringTop is the number of lines reported per source
const DefaultRecurringTop = 5

// RecurringLine is one of the most repeated lines of a source
type RecurringLine struct {
	Source      string `json:"source"`
	Line        string `json:"line"`
	Count       int    `json:"count"`
	HasKeywords bool   `json:"has_keywords"`
}

type lineCount struct {
	line  string
	count int
}

// RecurringLines returns the topN most repeated lines of each source,
// compared case-insensitively. Sources appear in first-seen order and
// equal counts keep first-seen line order.
func RecurringLines(records []*types.LogRecord, aliasOf func(id string) string, kw *keywords.Set, topN int) []RecurringLine {
	if topN <= 0 {
		topN = DefaultRecurringTop
	}
	if aliasOf == nil {
		aliasOf = func(id string) string { return id }
	}

	var sources []string
	counts := make(map[string][]lineCount)
	index := make(map[string]map[string]int)

	for _, rec := range records {
		if strings.TrimSpace(rec.Content) == "" {
			continue
		}
		idx, ok := index[rec.SourceID]
		if !ok {
			idx = make(map[string]int)
			index[rec.SourceID] = idx
			sources = append(sources, rec.SourceID)
		}
		key := strings.ToLower(rec.Content)
		if i, seen := idx[key]; seen {
			counts[rec.SourceID][i].count++
			continue
		}
		idx[key] = len(counts[rec.SourceID])
		counts[rec.SourceID] = append(counts[rec.SourceID], lineCount{line: rec.Content, count: 1})
	}

	var out []RecurringLine
	for _, id := range sources {
		lines := counts[id]
		slices.SortStableFunc(lines, func(a, b lineCount) int {
			return b.count - a.count
		})
		if len(lines) > topN {
			lines = lines[:topN]
		}
		name := aliasOf(id)
		for _, lc := range lines {
			out = append(out, RecurringLine{
				Source:      name,
				Line:        lc.line,
				Count:       lc.count,
				HasKeywords: kw.ContainsAny(lc.line),
			})
		}
	}
	return out
}
