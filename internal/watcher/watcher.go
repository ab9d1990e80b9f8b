// Package watcher turns raw filesystem notifications for watched log files
// into debounced, rate limited reload events.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/therealutkarshpriyadarshi/logview/internal/logging"
)

const DefaultDebounce = 500 * time.Millisecond

// Config controls event coalescing
type Config struct {
	Debounce          time.Duration `yaml:"debounce"`
	MinReloadInterval time.Duration `yaml:"min_reload_interval"`
}

// Event asks for a reload of Path
type Event struct {
	Path string
	Time time.Time
}

// Observer counts raw filesystem events by operation
type Observer interface {
	RecordWatchEvent(op string)
}

type watched struct {
	timer     *time.Timer
	limiter   *rate.Limiter
	scheduled bool // waiting on the limiter, further raw events fold in
}

// Registry multiplexes one fsnotify watcher over every watched file. The
// fsnotify watcher is created on the first Watch call. Parent directories
// are watched instead of the files so rotation by rename and recreate is
// still seen.
type Registry struct {
	config   Config
	logger   *logging.Logger
	observer Observer

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	paths   map[string]*watched
	dirs    map[string]int
	closed  bool

	events chan Event
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRegistry creates an idle registry
func NewRegistry(cfg Config, logger *logging.Logger) *Registry {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		config: cfg,
		logger: logging.OrNop(logger).WithComponent("watcher"),
		paths:  make(map[string]*watched),
		dirs:   make(map[string]int),
		events: make(chan Event, 64),
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetObserver installs a raw event observer. Call before the first Watch.
func (r *Registry) SetObserver(o Observer) {
	r.observer = o
}

// Events returns the debounced reload events. The channel is never closed;
// stop reading once Done is closed.
func (r *Registry) Events() <-chan Event {
	return r.events
}

// Done is closed by Close
func (r *Registry) Done() <-chan struct{} {
	return r.ctx.Done()
}

// Watch starts watching path. Watching an already watched path is a no-op.
func (r *Registry) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("watcher registry is closed")
	}
	if _, ok := r.paths[abs]; ok {
		return nil
	}
	if err := r.ensureWatcherLocked(); err != nil {
		return err
	}

	dir := filepath.Dir(abs)
	if r.dirs[dir] == 0 {
		if err := r.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	r.dirs[dir]++

	w := &watched{}
	if r.config.MinReloadInterval > 0 {
		w.limiter = rate.NewLimiter(rate.Every(r.config.MinReloadInterval), 1)
	}
	r.paths[abs] = w

	r.logger.Debug().Str("path", abs).Msg("Watching file")
	return nil
}

// Unwatch stops watching path and drops any pending event for it
func (r *Registry) Unwatch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.paths[abs]
	if !ok {
		return nil
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	delete(r.paths, abs)

	dir := filepath.Dir(abs)
	r.dirs[dir]--
	if r.dirs[dir] <= 0 {
		delete(r.dirs, dir)
		if r.watcher != nil {
			if err := r.watcher.Remove(dir); err != nil {
				r.logger.Debug().Err(err).Str("dir", dir).Msg("Failed to remove directory watch")
			}
		}
	}
	return nil
}

// Watching reports whether path is watched
func (r *Registry) Watching(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.paths[abs]
	return ok
}

// Close stops the registry. It is safe to call more than once.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	for _, w := range r.paths {
		if w.timer != nil {
			w.timer.Stop()
		}
	}
	r.cancel()
	fw := r.watcher
	r.mu.Unlock()

	var err error
	if fw != nil {
		err = fw.Close()
	}
	r.wg.Wait()
	return err
}

func (r *Registry) ensureWatcherLocked() error {
	if r.watcher != nil {
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	r.watcher = fw

	r.wg.Add(1)
	go r.watchLoop(fw)
	return nil
}

func (r *Registry) watchLoop(fw *fsnotify.Watcher) {
	defer r.wg.Done()

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			r.handleEvent(event)

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			r.logger.Error().Err(err).Msg("File watcher error")

		case <-r.ctx.Done():
			return
		}
	}
}

func opName(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Rename):
		return "rename"
	case op.Has(fsnotify.Remove):
		return "remove"
	default:
		return "chmod"
	}
}

func (r *Registry) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}
	path := filepath.Clean(event.Name)

	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.paths[path]
	if !ok || r.closed {
		return
	}
	if r.observer != nil {
		r.observer.RecordWatchEvent(opName(event.Op))
	}
	if w.scheduled {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(r.config.Debounce, func() { r.settle(path, w) })
}

// settle runs once the path has been quiet for the debounce period
func (r *Registry) settle(path string, w *watched) {
	r.mu.Lock()
	if r.closed || r.paths[path] != w {
		r.mu.Unlock()
		return
	}
	var delay time.Duration
	if w.limiter != nil {
		delay = w.limiter.Reserve().Delay()
	}
	if delay > 0 {
		w.scheduled = true
		w.timer = time.AfterFunc(delay, func() { r.emit(path, w) })
		r.mu.Unlock()
		r.logger.Debug().Str("path", path).Dur("delay", delay).Msg("Reload rate limited")
		return
	}
	r.mu.Unlock()
	r.emit(path, w)
}

func (r *Registry) emit(path string, w *watched) {
	r.mu.Lock()
	if r.closed || r.paths[path] != w {
		r.mu.Unlock()
		return
	}
	w.scheduled = false
	r.mu.Unlock()

	select {
	case r.events <- Event{Path: path, Time: time.Now()}:
	case <-r.ctx.Done():
	}
}
