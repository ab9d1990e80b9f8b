// Package workspace persists the session's workspace document in the
// background whenever the session changes.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/therealutkarshpriyadarshi/logview/internal/config"
	"github.com/therealutkarshpriyadarshi/logview/internal/logging"
)

// Snapshot builds the document to persist
type Snapshot func() *config.Workspace

// Manager manages workspace persistence. Changes are coalesced and the
// document is written at most once per interval.
type Manager struct {
	path     string
	interval time.Duration
	snapshot Snapshot
	logger   *logging.Logger

	dirty atomic.Bool
	saves atomic.Uint64

	mu        sync.Mutex // serializes writes
	stopCh    chan struct{}
	doneCh    chan struct{}
	saveCh    chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewManager creates a new workspace manager
func NewManager(path string, interval time.Duration, snapshot Snapshot, logger *logging.Logger) (*Manager, error) {
	if path == "" {
		return nil, fmt.Errorf("workspace path is required")
	}
	if snapshot == nil {
		return nil, fmt.Errorf("workspace snapshot function is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace directory: %w", err)
	}
	if interval <= 0 {
		interval = config.DefaultAutosaveInterval
	}

	return &Manager{
		path:     path,
		interval: interval,
		snapshot: snapshot,
		logger:   logging.OrNop(logger).WithComponent("workspace"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		saveCh:   make(chan struct{}, 1),
	}, nil
}

// Name implements shutdown.Component
func (m *Manager) Name() string { return "workspace" }

// Path returns the document location
func (m *Manager) Path() string { return m.path }

// Saves returns how many times the document was written
func (m *Manager) Saves() uint64 { return m.saves.Load() }

// Load reads the persisted document
func (m *Manager) Load() (*config.Workspace, error) {
	return config.LoadWorkspace(m.path)
}

// Start starts the periodic save loop
func (m *Manager) Start() {
	m.startOnce.Do(func() {
		go m.saveLoop()
	})
}

// MarkDirty schedules a save on the next tick
func (m *Manager) MarkDirty() {
	m.dirty.Store(true)
}

// Flush requests an immediate save
func (m *Manager) Flush() {
	m.dirty.Store(true)
	select {
	case m.saveCh <- struct{}{}:
	default:
	}
}

// Follow marks the workspace dirty for every store change notification
// until ctx is done or changes is closed
func (m *Manager) Follow(ctx context.Context, changes <-chan uint64) {
	for {
		select {
		case _, ok := <-changes:
			if !ok {
				return
			}
			m.MarkDirty()
		case <-ctx.Done():
			return
		}
	}
}

// Save writes the current snapshot unconditionally
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dirty.Store(false)
	if err := config.SaveWorkspace(m.path, m.snapshot()); err != nil {
		m.dirty.Store(true)
		return err
	}
	m.saves.Add(1)
	return nil
}

func (m *Manager) saveIfDirty() {
	if !m.dirty.Load() {
		return
	}
	if err := m.Save(); err != nil {
		m.logger.Error().Err(err).Str("path", m.path).Msg("Failed to save workspace")
	}
}

// Stop stops the save loop and writes any pending change
func (m *Manager) Stop(ctx context.Context) error {
	var err error
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.startOnce.Do(func() { close(m.doneCh) })

		select {
		case <-m.doneCh:
		case <-ctx.Done():
			err = ctx.Err()
			return
		}
		if m.dirty.Load() {
			err = m.Save()
		}
	})
	return err
}

// saveLoop periodically saves the workspace
func (m *Manager) saveLoop() {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.saveIfDirty()
		case <-m.saveCh:
			m.saveIfDirty()
		case <-m.stopCh:
			return
		}
	}
}
