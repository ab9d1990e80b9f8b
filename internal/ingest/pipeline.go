// Package ingest loads log files into the record store and keeps watched
// files up to date.
//
// Every source moves through Pending, Loading and then one of Loaded,
// LoadFailed or Cancelled. Loads and reloads of one source are serialized
// through the store's per-source writer lock; loads of different sources
// run in parallel on the worker pool.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/therealutkarshpriyadarshi/logview/internal/level"
	"github.com/therealutkarshpriyadarshi/logview/internal/logerr"
	"github.com/therealutkarshpriyadarshi/logview/internal/logging"
	"github.com/therealutkarshpriyadarshi/logview/internal/parser"
	"github.com/therealutkarshpriyadarshi/logview/internal/reliability"
	"github.com/therealutkarshpriyadarshi/logview/internal/signature"
	"github.com/therealutkarshpriyadarshi/logview/internal/store"
	"github.com/therealutkarshpriyadarshi/logview/internal/tracing"
	"github.com/therealutkarshpriyadarshi/logview/internal/watcher"
	"github.com/therealutkarshpriyadarshi/logview/internal/worker"
	"github.com/therealutkarshpriyadarshi/logview/pkg/types"
)

const (
	DefaultBatchSize   = 1000
	DefaultParallelism = 4
)

// ErrClosed is returned for work submitted after Stop
var ErrClosed = errors.New("ingest pipeline is closed")

// Observer receives ingestion statistics
type Observer interface {
	RecordLines(source string, n int)
	RecordRecords(n int)
	RecordFailure(reason string)
	ObserveIngest(d time.Duration)
	SetSourcesLoaded(n int)
	RecordReload()
}

type nopObserver struct{}

func (nopObserver) RecordLines(string, int)     {}
func (nopObserver) RecordRecords(int)           {}
func (nopObserver) RecordFailure(string)        {}
func (nopObserver) ObserveIngest(time.Duration) {}
func (nopObserver) SetSourcesLoaded(int)        {}
func (nopObserver) RecordReload()               {}

// Config wires a pipeline to its collaborators. Only Store is required.
type Config struct {
	Store    *store.Store
	Registry *parser.Registry
	Logger   *logging.Logger
	Metrics  Observer
	Tracer   *tracing.Provider

	// Pool runs loads in the background. Without a pool loads run on the
	// calling goroutine.
	Pool *worker.Pool

	// Watcher delivers change events for watched sources
	Watcher *watcher.Registry

	// Retry governs watcher triggered reloads
	Retry reliability.RetryConfig

	MaxLinesPerFile     int
	ShowLineRateWarning bool
	Decider             Decider

	BatchSize   int
	Parallelism int
}

// Result is the outcome of loading one path in a batch
type Result struct {
	Path   string
	Source *types.LogSource
	Err    error
}

// Pipeline orchestrates file loads into a store
type Pipeline struct {
	store       *store.Store
	registry    *parser.Registry
	logger      *logging.Logger
	observer    Observer
	tracer      *tracing.Provider
	pool        *worker.Pool
	watcher     *watcher.Registry
	retry       reliability.RetryConfig
	decider     Decider
	maxLines    int
	warn        bool
	batchSize   int
	parallelism int

	publishMu sync.Mutex

	mu      sync.Mutex
	flights map[string]map[*flight]struct{}
	watched map[string]string // path -> source id
	closed  bool
	wg      sync.WaitGroup
}

type flight struct {
	cancel context.CancelFunc
}

// outcome summarizes one pass over a file
type outcome struct {
	records   int
	truncated bool
}

// New creates a pipeline
func New(cfg Config) (*Pipeline, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("ingest pipeline requires a store")
	}
	if cfg.Registry == nil {
		cfg.Registry = parser.NewRegistry(nil)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopObserver{}
	}
	if cfg.Decider == nil {
		cfg.Decider = AlwaysContinue
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = DefaultParallelism
	}

	return &Pipeline{
		store:       cfg.Store,
		registry:    cfg.Registry,
		logger:      logging.OrNop(cfg.Logger).WithComponent("ingest"),
		observer:    cfg.Metrics,
		tracer:      tracing.OrNoop(cfg.Tracer),
		pool:        cfg.Pool,
		watcher:     cfg.Watcher,
		retry:       cfg.Retry,
		decider:     cfg.Decider,
		maxLines:    cfg.MaxLinesPerFile,
		warn:        cfg.ShowLineRateWarning,
		batchSize:   cfg.BatchSize,
		parallelism: cfg.Parallelism,
		flights:     make(map[string]map[*flight]struct{}),
		watched:     make(map[string]string),
	}, nil
}

// Name implements shutdown.Component
func (p *Pipeline) Name() string { return "ingest" }

// SetLineLimit changes the line limit for loads started afterwards
func (p *Pipeline) SetLineLimit(maxLines int, warn bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maxLines = maxLines
	p.warn = warn
}

func (p *Pipeline) lineLimit() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxLines, p.warn
}

// Load registers path as a new source and ingests it. A capacity error
// means no source was created; any other error leaves the source in the
// store in the LoadFailed or Cancelled state.
func (p *Pipeline) Load(ctx context.Context, path string) (*types.LogSource, error) {
	src, err := p.register(path)
	if err != nil {
		return nil, err
	}

	err = p.execute(ctx, src.ID, false)

	out, ok := p.store.Source(src.ID)
	if !ok {
		return nil, err
	}
	return &out, err
}

// LoadAll loads every path in parallel. Failures are isolated per path.
// Sources are registered in argument order, so when the source cap is hit
// the trailing paths are the ones rejected.
func (p *Pipeline) LoadAll(ctx context.Context, paths []string) []Result {
	results := make([]Result, len(paths))

	var g errgroup.Group
	g.SetLimit(p.parallelism)

	for i, path := range paths {
		results[i].Path = path

		src, err := p.register(path)
		if err != nil {
			results[i].Err = err
			continue
		}

		g.Go(func() error {
			err := p.execute(ctx, src.ID, false)
			if out, ok := p.store.Source(src.ID); ok {
				results[i].Source = &out
			}
			results[i].Err = err
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// Reload re-reads a source and swaps its records in one step. When the
// reload fails the previous records stay in place.
func (p *Pipeline) Reload(ctx context.Context, id string) error {
	if _, ok := p.store.Source(id); !ok {
		return logerr.New(logerr.KindNotFound, "reload", id, logerr.ErrUnknownSource)
	}
	p.observer.RecordReload()

	return reliability.Retry(ctx, p.retry, func(ctx context.Context) error {
		return p.execute(ctx, id, true)
	})
}

// Cancel stops every in-flight or queued pass over id. It reports whether
// any was found.
func (p *Pipeline) Cancel(id string) bool {
	p.mu.Lock()
	set := p.flights[id]
	for f := range set {
		f.cancel()
	}
	p.mu.Unlock()
	return len(set) > 0
}

// Remove cancels any load of id, stops watching its file and drops the
// source with all of its records
func (p *Pipeline) Remove(id string) error {
	src, ok := p.store.Source(id)
	if !ok {
		return logerr.New(logerr.KindNotFound, "remove", id, logerr.ErrUnknownSource)
	}
	p.Cancel(id)

	unlock := p.store.LockSource(id)
	removed := p.store.RemoveSource(id)
	unlock()

	p.unwatch(src)
	p.publishLoaded()

	p.logger.Info().
		Str("source_id", id).
		Str("path", src.Path).
		Int("records", removed).
		Msg("Source removed")
	return nil
}

// Watch reloads id whenever its file changes. Run must be running for
// the events to be acted on.
func (p *Pipeline) Watch(id string) error {
	if p.watcher == nil {
		return fmt.Errorf("file watching is not enabled")
	}
	src, ok := p.store.Source(id)
	if !ok {
		return logerr.New(logerr.KindNotFound, "watch", id, logerr.ErrUnknownSource)
	}

	if err := p.watcher.Watch(src.Path); err != nil {
		return logerr.New(logerr.KindSourceLoad, "watch", src.Path, err)
	}

	p.mu.Lock()
	p.watched[src.Path] = id
	p.mu.Unlock()

	return p.store.UpdateSource(id, func(s *types.LogSource) { s.Watched = true })
}

func (p *Pipeline) unwatch(src types.LogSource) {
	p.mu.Lock()
	_, ok := p.watched[src.Path]
	delete(p.watched, src.Path)
	p.mu.Unlock()

	if !ok || p.watcher == nil {
		return
	}
	if err := p.watcher.Unwatch(src.Path); err != nil {
		p.logger.Warn().Err(err).Str("path", src.Path).Msg("Failed to stop watching file")
	}
}

// Run turns watcher events into reloads until ctx is done or the watcher
// is closed
func (p *Pipeline) Run(ctx context.Context) error {
	if p.watcher == nil {
		<-ctx.Done()
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.watcher.Done():
			return nil
		case ev := <-p.watcher.Events():
			p.mu.Lock()
			id, ok := p.watched[ev.Path]
			closed := p.closed
			p.mu.Unlock()
			if !ok || closed {
				continue
			}

			p.wg.Add(1)
			go func() {
				defer p.wg.Done()
				if err := p.Reload(ctx, id); err != nil {
					p.logger.Debug().Err(err).Str("source_id", id).Msg("Reload did not complete")
				}
			}()
		}
	}
}

// Stop cancels in-flight loads and waits for pending reloads
func (p *Pipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	for _, set := range p.flights {
		for f := range set {
			f.cancel()
		}
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// register creates the Pending source for path
func (p *Pipeline) register(path string) (types.LogSource, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return types.LogSource{}, ErrClosed
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return types.LogSource{}, logerr.New(logerr.KindSourceLoad, "resolve", path, err)
	}

	name := filepath.Base(abs)
	src := types.LogSource{
		ID:      uuid.NewString(),
		Name:    name,
		Alias:   strings.TrimSuffix(name, filepath.Ext(name)),
		Path:    abs,
		Visible: true,
		State:   types.StatePending,
	}
	if info, err := os.Stat(abs); err == nil {
		src.Size = info.Size()
	}

	if err := p.store.AddSource(&src); err != nil {
		p.observer.RecordFailure(string(logerr.KindCapacity))
		return types.LogSource{}, err
	}
	return src, nil
}

// execute runs one pass over id on the pool, or inline without one. It
// only returns once the pass has finished or is known never to start.
// Cancel(id) reaches the pass from the moment it is queued.
func (p *Pipeline) execute(ctx context.Context, id string, reload bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	f := &flight{cancel: cancel}
	p.mu.Lock()
	if p.flights[id] == nil {
		p.flights[id] = make(map[*flight]struct{})
	}
	p.flights[id][f] = struct{}{}
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.flights[id], f)
		if len(p.flights[id]) == 0 {
			delete(p.flights, id)
		}
		p.mu.Unlock()
	}()

	job := func(ctx context.Context) error {
		return p.run(ctx, id, reload)
	}
	if p.pool == nil {
		return job(ctx)
	}

	var started atomic.Bool
	done := make(chan error, 1)
	err := p.pool.Submit(ctx, func(ctx context.Context) error {
		started.Store(true)
		err := job(ctx)
		done <- err
		return err
	})
	if started.Load() {
		return <-done
	}
	if err != nil {
		p.abandon(id, err)
	}
	return err
}

// abandon settles a source whose job never ran
func (p *Pipeline) abandon(id string, cause error) {
	state := types.StateLoadFailed
	if errors.Is(cause, context.Canceled) {
		state = types.StateCancelled
	}
	_ = p.store.UpdateSource(id, func(s *types.LogSource) {
		if s.State == types.StatePending {
			s.State = state
			s.LastError = cause.Error()
		}
	})
}

// run performs one load or reload of id while holding its writer lock
func (p *Pipeline) run(ctx context.Context, id string, reload bool) error {
	unlock := p.store.LockSource(id)
	defer unlock()

	src, ok := p.store.Source(id)
	if !ok {
		return logerr.New(logerr.KindNotFound, "load", id, logerr.ErrUnknownSource)
	}

	op := "load"
	lp := p.registry.Select(src.Path)
	var span trace.Span
	if reload {
		op = "reload"
		ctx, span = p.tracer.TraceReload(ctx, id, src.Path)
		tracing.SetAttributes(ctx, attribute.String("parser.name", lp.Name()))
	} else {
		ctx, span = p.tracer.TraceLoad(ctx, id, src.Path, lp.Name())
	}
	defer span.End()

	logger := p.logger.WithSource(id, src.Path)
	start := time.Now()

	_ = p.store.UpdateSource(id, func(s *types.LogSource) {
		s.State = types.StateLoading
		s.LastError = ""
		if info, err := os.Stat(s.Path); err == nil {
			s.Size = info.Size()
		}
	})
	logger.Debug().Str("parser", lp.Name()).Bool("reload", reload).Msg("Loading source")

	var fresh []*types.LogRecord
	sink := func(batch []*types.LogRecord) error {
		return p.store.AppendRecords(id, batch)
	}
	if reload {
		sink = func(batch []*types.LogRecord) error {
			fresh = append(fresh, batch...)
			return nil
		}
	}

	out, err := p.consume(ctx, src, lp, sink)
	if err == nil && reload {
		err = p.store.ReplaceRecords(id, fresh)
	}
	return p.finish(ctx, logger, src, op, out, err, time.Since(start))
}

// consume streams the parsed records of src into sink in batches
func (p *Pipeline) consume(ctx context.Context, src types.LogSource, lp parser.LineParser, sink func([]*types.LogRecord) error) (outcome, error) {
	var out outcome
	batch := make([]*types.LogRecord, 0, p.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := sink(batch); err != nil {
			return err
		}
		out.records += len(batch)
		batch = batch[:0]
		return nil
	}

	maxLines, warn := p.lineLimit()
	asked := !warn || maxLines <= 0
	seen := 0

	for rec, err := range lp.Parse(ctx, src.Path) {
		if err != nil {
			if ferr := flush(); ferr != nil {
				return out, ferr
			}
			return out, err
		}

		seen++
		if !asked && seen > maxLines {
			asked = true
			if err := flush(); err != nil {
				return out, err
			}
			decision := p.decider.Decide(ctx, src, seen)
			tracing.AddEvent(ctx, "line_limit",
				attribute.Int("lines", seen),
				attribute.String("decision", decision.String()),
			)
			if decision == Abort {
				out.truncated = true
				return out, nil
			}
			if err := ctx.Err(); err != nil {
				return out, err
			}
		}

		if level.Extract(rec.Content) == level.Error {
			rec.Signature = signature.Normalize(rec.Content)
		}
		batch = append(batch, rec)
		if len(batch) >= p.batchSize {
			if err := flush(); err != nil {
				return out, err
			}
		}
	}

	return out, flush()
}

// finish records the terminal state of one pass
func (p *Pipeline) finish(ctx context.Context, logger *logging.Logger, src types.LogSource, op string, out outcome, err error, elapsed time.Duration) error {
	defer p.publishLoaded()
	p.observer.ObserveIngest(elapsed)

	switch {
	case err == nil:
		_ = p.store.UpdateSource(src.ID, func(s *types.LogSource) {
			s.State = types.StateLoaded
			s.Truncated = out.truncated
			s.LastError = ""
		})
		p.observer.RecordRecords(out.records)
		p.observer.RecordLines(src.DisplayName(), out.records)
		tracing.SetAttributes(ctx, attribute.Int("records", out.records))

		logger.Info().
			Str("op", op).
			Int("records", out.records).
			Bool("truncated", out.truncated).
			Dur("duration", elapsed).
			Msg("Source loaded")
		return nil

	case errors.Is(err, context.Canceled):
		err = logerr.New(logerr.KindCancelled, op, src.Path, err)
		_ = p.store.SetState(src.ID, types.StateCancelled, err)
		logger.Info().Str("op", op).Int("records_kept", out.records).Msg("Source load cancelled")
		return err

	default:
		if logerr.KindOf(err) == "" {
			err = logerr.New(logerr.KindSourceLoad, op, src.Path, err)
		}
		_ = p.store.SetState(src.ID, types.StateLoadFailed, err)
		p.observer.RecordFailure(string(logerr.KindOf(err)))
		tracing.RecordError(ctx, err)

		logger.Error().
			Err(err).
			Str("op", op).
			Int("records_kept", out.records).
			Msg("Source load failed")
		return err
	}
}

// publishLoaded reports the number of sources in the Loaded state
func (p *Pipeline) publishLoaded() {
	p.publishMu.Lock()
	defer p.publishMu.Unlock()

	n := 0
	for _, src := range p.store.Sources() {
		if src.State == types.StateLoaded {
			n++
		}
	}
	p.observer.SetSourcesLoaded(n)
}
