// Package viewer is the query surface a front end drives: it owns the
// record store and the ingestion pipeline and answers view, analytics and
// pattern queries over the visible sources.
package viewer

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/logview/internal/analytics"
	"github.com/therealutkarshpriyadarshi/logview/internal/config"
	"github.com/therealutkarshpriyadarshi/logview/internal/export"
	"github.com/therealutkarshpriyadarshi/logview/internal/filter"
	"github.com/therealutkarshpriyadarshi/logview/internal/ingest"
	"github.com/therealutkarshpriyadarshi/logview/internal/keywords"
	"github.com/therealutkarshpriyadarshi/logview/internal/logging"
	"github.com/therealutkarshpriyadarshi/logview/internal/patterns"
	"github.com/therealutkarshpriyadarshi/logview/internal/store"
	"github.com/therealutkarshpriyadarshi/logview/pkg/types"
)

// LevelObserver receives the level distribution of each fresh analytics
// snapshot
type LevelObserver interface {
	SetLevelCounts(counts map[string]int)
}

// Config assembles a session. Store and Pipeline are required.
type Config struct {
	Store    *store.Store
	Pipeline *ingest.Pipeline
	Logger   *logging.Logger

	MaxDisplayed   int
	FilterObserver filter.Observer
	LevelObserver  LevelObserver

	Detector    *patterns.Detector
	Keywords    *keywords.Set
	TopPatterns int

	MaxLinesPerFile     int
	ShowLineRateWarning bool
	Presets             []filter.Preset

	// WatchOnLoad watches every file loaded through the session
	WatchOnLoad bool
}

// Session answers queries over one store
type Session struct {
	store    *store.Store
	pipeline *ingest.Pipeline
	engine   *filter.Engine
	detector *patterns.Detector
	logger   *logging.Logger
	levels   LevelObserver
	topN     int
	watch    bool

	mu       sync.Mutex
	keywords *keywords.Set
	maxLines int
	warn     bool
	presets  []filter.Preset

	cacheMu   sync.Mutex
	snapshot  types.AnalyticsSnapshot
	haveCache bool
}

// New creates a session
func New(cfg Config) (*Session, error) {
	if cfg.Store == nil || cfg.Pipeline == nil {
		return nil, fmt.Errorf("viewer session requires a store and a pipeline")
	}
	if cfg.Detector == nil {
		cfg.Detector = patterns.NewDetector()
	}
	if cfg.Keywords == nil {
		cfg.Keywords = keywords.Default()
	}

	engine := filter.NewEngine(cfg.Store, cfg.MaxDisplayed)
	engine.Observer = cfg.FilterObserver

	return &Session{
		store:    cfg.Store,
		pipeline: cfg.Pipeline,
		engine:   engine,
		detector: cfg.Detector,
		logger:   logging.OrNop(cfg.Logger).WithComponent("viewer"),
		levels:   cfg.LevelObserver,
		topN:     cfg.TopPatterns,
		watch:    cfg.WatchOnLoad,
		keywords: cfg.Keywords,
		maxLines: cfg.MaxLinesPerFile,
		warn:     cfg.ShowLineRateWarning,
		presets:  slices.Clone(cfg.Presets),
	}, nil
}

// Store returns the underlying record store
func (s *Session) Store() *store.Store { return s.store }

// Pipeline returns the ingestion pipeline
func (s *Session) Pipeline() *ingest.Pipeline { return s.pipeline }

// Version is the store's change counter. Callers poll it, or read
// Store().Changes(), to learn that their views are stale.
func (s *Session) Version() uint64 { return s.store.Version() }

// Load ingests one file and, when the session watches on load, starts
// watching it
func (s *Session) Load(ctx context.Context, path string) (*types.LogSource, error) {
	src, err := s.pipeline.Load(ctx, path)
	if src != nil && s.watch {
		s.watchSource(src.ID)
	}
	return src, err
}

// LoadAll ingests several files in parallel
func (s *Session) LoadAll(ctx context.Context, paths []string) []ingest.Result {
	results := s.pipeline.LoadAll(ctx, paths)
	if s.watch {
		for _, r := range results {
			if r.Source != nil {
				s.watchSource(r.Source.ID)
			}
		}
	}
	return results
}

func (s *Session) watchSource(id string) {
	if err := s.pipeline.Watch(id); err != nil {
		s.logger.Warn().Err(err).Str("source_id", id).Msg("Failed to watch source")
	}
}

// Remove drops a source and its records
func (s *Session) Remove(id string) error {
	return s.pipeline.Remove(id)
}

// SetVisible shows or hides a source in every view
func (s *Session) SetVisible(id string, visible bool) error {
	return s.store.SetVisible(id, visible)
}

// SetAlias renames a source
func (s *Session) SetAlias(id, alias string) error {
	return s.store.SetAlias(id, alias)
}

// Keywords returns the active keyword set
func (s *Session) Keywords() *keywords.Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keywords
}

// SetKeywords replaces the keyword set
func (s *Session) SetKeywords(kw *keywords.Set) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keywords = kw
}

// SetLineLimit changes the line limit for future loads
func (s *Session) SetLineLimit(maxLines int, warn bool) {
	s.mu.Lock()
	s.maxLines = maxLines
	s.warn = warn
	s.mu.Unlock()
	s.pipeline.SetLineLimit(maxLines, warn)
}

// Preset looks up a saved filter
func (s *Session) Preset(name string) (filter.Preset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.presets {
		if p.Name == name {
			return p, true
		}
	}
	return filter.Preset{}, false
}

// SavePreset adds or replaces a saved filter
func (s *Session) SavePreset(p filter.Preset) error {
	if _, err := filter.FromPreset(p, time.Time{}); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.presets {
		if s.presets[i].Name == p.Name {
			s.presets[i] = p
			return nil
		}
	}
	s.presets = append(s.presets, p)
	return nil
}

// GetVisibleRecords returns the records passing c in display order
func (s *Session) GetVisibleRecords(c filter.Criteria) filter.Result {
	return s.engine.Visible(c)
}

// visibleRecords returns every record of a visible source in display order
func (s *Session) visibleRecords() []*types.LogRecord {
	sources := s.store.SourceMap()
	var out []*types.LogRecord
	s.store.Iterate(func(rec *types.LogRecord) bool {
		if src, ok := sources[rec.SourceID]; ok && src.Visible {
			out = append(out, rec)
		}
		return true
	})
	return out
}

// GetAnalytics summarizes the visible sources. The snapshot is recomputed
// in full whenever the store version moved since the last call.
func (s *Session) GetAnalytics() types.AnalyticsSnapshot {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	version := s.store.Version()
	if s.haveCache && s.snapshot.Version == version {
		return s.snapshot
	}

	snap := analytics.Analyze(s.visibleRecords(), analytics.Options{TopPatterns: s.topN})
	snap.Version = version
	s.snapshot = snap
	s.haveCache = true

	if s.levels != nil {
		s.levels.SetLevelCounts(snap.LevelCounts)
	}
	return snap
}

// DetectPatterns runs a full pattern scan over the visible sources
func (s *Session) DetectPatterns() []types.ErrorPattern {
	return s.detector.Detect(s.visibleRecords(), s.store.AliasOf)
}

// RecurringLines reports the most repeated lines of each visible source
func (s *Session) RecurringLines(topN int) []analytics.RecurringLine {
	return analytics.RecurringLines(s.visibleRecords(), s.store.AliasOf, s.Keywords(), topN)
}

// visibleFiles lists the names of the visible sources in insertion order
func (s *Session) visibleFiles() []string {
	var files []string
	for _, src := range s.store.Sources() {
		if src.Visible {
			files = append(files, src.Name)
		}
	}
	return files
}

// ExportDocument renders the records passing c
func (s *Session) ExportDocument(c filter.Criteria) export.Document {
	res := s.GetVisibleRecords(c)
	doc := export.NewDocument(res.Records, s.store.AliasOf, s.visibleFiles())
	doc.Search = c.Pattern
	doc.Window = c.Window
	return doc
}

// KeywordDocument renders the visible records mentioning any keyword
func (s *Session) KeywordDocument() export.Document {
	kw := s.Keywords()
	var matched []*types.LogRecord
	for _, rec := range s.visibleRecords() {
		if kw.ContainsAny(rec.Content) {
			matched = append(matched, rec)
		}
	}
	doc := export.NewDocument(matched, s.store.AliasOf, s.visibleFiles())
	doc.Keywords = kw.Words()
	return doc
}

// Workspace captures the current sources and settings
func (s *Session) Workspace() *config.Workspace {
	s.mu.Lock()
	ws := &config.Workspace{
		Version:             config.WorkspaceVersion,
		Keywords:            s.keywords.Words(),
		MaxLinesPerFile:     s.maxLines,
		ShowLineRateWarning: s.warn,
		Presets:             slices.Clone(s.presets),
	}
	s.mu.Unlock()

	for _, src := range s.store.Sources() {
		ws.Sources = append(ws.Sources, config.WorkspaceSource{
			Path:    src.Path,
			Alias:   src.Alias,
			Visible: src.Visible,
		})
	}
	return ws
}

// Restore applies a workspace document: settings first, then every source
// not already loaded, keeping each source's alias and visibility. Per file
// failures are reported in the results and do not stop the others.
func (s *Session) Restore(ctx context.Context, ws *config.Workspace) ([]ingest.Result, error) {
	if ws == nil {
		return nil, nil
	}
	if err := ws.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workspace: %w", err)
	}

	if len(ws.Keywords) > 0 {
		s.SetKeywords(keywords.New(ws.Keywords...))
	}

	s.mu.Lock()
	maxLines := s.maxLines
	if ws.MaxLinesPerFile > 0 {
		maxLines = ws.MaxLinesPerFile
	}
	s.presets = slices.Clone(ws.Presets)
	s.mu.Unlock()
	s.SetLineLimit(maxLines, ws.ShowLineRateWarning)

	var paths []string
	saved := make(map[string]config.WorkspaceSource, len(ws.Sources))
	for _, src := range ws.Sources {
		if _, loaded := s.store.FindByPath(src.Path); loaded {
			continue
		}
		paths = append(paths, src.Path)
		saved[src.Path] = src
	}

	results := s.LoadAll(ctx, paths)
	for _, r := range results {
		if r.Source == nil {
			continue
		}
		want := saved[r.Path]
		err := s.store.UpdateSource(r.Source.ID, func(src *types.LogSource) {
			if want.Alias != "" {
				src.Alias = want.Alias
			}
			src.Visible = want.Visible
		})
		if err != nil {
			continue
		}
		r.Source.Visible = want.Visible
		if want.Alias != "" {
			r.Source.Alias = want.Alias
		}
	}

	s.logger.Info().
		Int("sources", len(paths)).
		Int("skipped", len(ws.Sources)-len(paths)).
		Msg("Workspace restored")
	return results, nil
}
