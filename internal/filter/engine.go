package filter

import (
	"time"

	"github.com/therealutkarshpriyadarshi/logview/internal/store"
	"github.com/therealutkarshpriyadarshi/logview/pkg/types"
)

// DefaultMaxDisplayed caps the visible set handed to a view
const DefaultMaxDisplayed = 10000

// Observer receives filter pass durations
type Observer interface {
	ObserveFilter(d time.Duration)
}

// Engine re-derives the visible set from the store on every call
type Engine struct {
	Store        *store.Store
	MaxDisplayed int
	Observer     Observer
}

// Result is one filter pass. Matched counts every passing record even when
// Records was cut at the display cap. Err carries a non-fatal criteria
// problem such as an invalid regex.
type Result struct {
	Records   []*types.LogRecord
	Matched   int
	Truncated bool
	Err       error
}

// NewEngine creates an engine over s
func NewEngine(s *store.Store, maxDisplayed int) *Engine {
	return &Engine{Store: s, MaxDisplayed: maxDisplayed}
}

// Visible returns the records passing c in display order
func (e *Engine) Visible(c Criteria) Result {
	start := time.Now()
	defer func() {
		if e.Observer != nil {
			e.Observer.ObserveFilter(time.Since(start))
		}
	}()

	pred, err := Compile(c)
	res := Result{Err: err}

	limit := e.MaxDisplayed
	if limit <= 0 {
		limit = DefaultMaxDisplayed
	}

	sources := e.Store.SourceMap()
	e.Store.Iterate(func(rec *types.LogRecord) bool {
		src, ok := sources[rec.SourceID]
		if !ok || !pred.Match(rec, &src) {
			return true
		}
		res.Matched++
		if len(res.Records) < limit {
			res.Records = append(res.Records, rec)
		}
		return true
	})

	res.Truncated = res.Matched > len(res.Records)
	return res
}

// Apply filters an arbitrary record slice, keeping its order
func Apply(records []*types.LogRecord, sources map[string]types.LogSource, pred *Predicate) []*types.LogRecord {
	var out []*types.LogRecord
	for _, rec := range records {
		src, ok := sources[rec.SourceID]
		if ok && pred.Match(rec, &src) {
			out = append(out, rec)
		}
	}
	return out
}
