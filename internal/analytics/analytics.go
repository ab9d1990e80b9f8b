// Package analytics derives read-only summaries from a record set. Every
// function here is pure: the same input always gives the same snapshot.
package analytics

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/therealutkarshpriyadarshi/logview/internal/level"
	"github.com/therealutkarshpriyadarshi/logview/internal/signature"
	"github.com/therealutkarshpriyadarshi/logview/pkg/types"
)

const (
	// HourLayout keys the hourly buckets
	HourLayout = "2006-01-02 15:00"

	// DefaultTopPatterns bounds the error summary
	DefaultTopPatterns = 10
)

var errorMarkers = []string{"error", "exception", "fail"}

// Options tunes Analyze
type Options struct {
	TopPatterns int
}

// Analyze computes a full snapshot over records. Empty input gives zero
// values, never NaN.
func Analyze(records []*types.LogRecord, opts Options) types.AnalyticsSnapshot {
	if opts.TopPatterns <= 0 {
		opts.TopPatterns = DefaultTopPatterns
	}

	snap := types.AnalyticsSnapshot{
		TotalRecords:     len(records),
		LevelCounts:      make(map[string]int),
		LevelPercentages: make(map[string]float64),
		HourlyCounts:     make(map[string]int),
	}

	unique := make(map[string]struct{}, len(records))
	totalLength := 0

	for _, rec := range records {
		snap.LevelCounts[level.ExtractForAnalytics(rec.Content)]++
		totalLength += utf8.RuneCountInString(rec.Content)
		unique[rec.Content] = struct{}{}

		if !rec.HasTimestamp {
			continue
		}
		snap.TimestampedRecords++
		if !snap.HasTimeRange || rec.Timestamp.Before(snap.First) {
			snap.First = rec.Timestamp
		}
		if !snap.HasTimeRange || rec.Timestamp.After(snap.Last) {
			snap.Last = rec.Timestamp
		}
		snap.HasTimeRange = true
		snap.HourlyCounts[rec.Timestamp.Format(HourLayout)]++
		snap.HourOfDay[rec.Timestamp.Hour()]++
	}

	snap.UniqueMessages = len(unique)
	if len(records) > 0 {
		snap.AverageLength = float64(totalLength) / float64(len(records))
		for lvl, n := range snap.LevelCounts {
			snap.LevelPercentages[lvl] = float64(n) * 100 / float64(len(records))
		}
	}
	if snap.HasTimeRange {
		snap.Span = snap.Last.Sub(snap.First)
	}

	snap.PeakHours, snap.PeakCount = peaks(snap.HourlyCounts)
	snap.ErrorSummary = ErrorSummary(records, opts.TopPatterns)
	return snap
}

// peaks returns every bucket tied for the maximum count, sorted
func peaks(hourly map[string]int) ([]string, int) {
	top := 0
	for _, n := range hourly {
		if n > top {
			top = n
		}
	}
	if top == 0 {
		return nil, 0
	}
	var out []string
	for hour, n := range hourly {
		if n == top {
			out = append(out, hour)
		}
	}
	slices.Sort(out)
	return out, top
}

// ErrorSummary groups records mentioning error, exception or fail by
// signature and returns the topN largest groups. Ties keep first-seen
// order. This is separate from pattern detection and not merged with it.
func ErrorSummary(records []*types.LogRecord, topN int) []types.SignatureCount {
	index := make(map[string]int)
	var groups []types.SignatureCount

	for _, rec := range records {
		if !mentionsError(rec.Content) {
			continue
		}
		sig := signature.Normalize(rec.Content)
		if i, ok := index[sig]; ok {
			groups[i].Count++
			continue
		}
		index[sig] = len(groups)
		groups = append(groups, types.SignatureCount{Signature: sig, Count: 1, Example: rec.Content})
	}

	slices.SortStableFunc(groups, func(a, b types.SignatureCount) int {
		return b.Count - a.Count
	})
	if topN > 0 && len(groups) > topN {
		groups = groups[:topN]
	}
	return groups
}

func mentionsError(content string) bool {
	lower := strings.ToLower(content)
	for _, m := range errorMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
