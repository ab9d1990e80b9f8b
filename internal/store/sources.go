package store

import (
	"github.com/therealutkarshpriyadarshi/logview/internal/logerr"
	"github.com/therealutkarshpriyadarshi/logview/pkg/types"
)

// Source returns a copy of one source
func (s *Store) Source(id string) (types.LogSource, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return types.LogSource{}, false
	}
	return e.source, true
}

// Sources returns copies of all sources in insertion order
func (s *Store) Sources() []types.LogSource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.LogSource, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entries[id].source)
	}
	return out
}

// SourceMap returns copies of all sources keyed by ID
func (s *Store) SourceMap() map[string]types.LogSource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]types.LogSource, len(s.entries))
	for id, e := range s.entries {
		out[id] = e.source
	}
	return out
}

// FindByPath returns the source loaded from path
func (s *Store) FindByPath(path string) (types.LogSource, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if e := s.entries[id]; e.source.Path == path {
			return e.source, true
		}
	}
	return types.LogSource{}, false
}

// AliasOf returns the display name of a source, or "" if unknown
func (s *Store) AliasOf(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entries[id]; ok {
		return e.source.DisplayName()
	}
	return ""
}

// SetVisible toggles whether a source takes part in filtered views
func (s *Store) SetVisible(id string, visible bool) error {
	return s.UpdateSource(id, func(src *types.LogSource) {
		src.Visible = visible
	})
}

// SetAlias renames a source. Records pick the alias up through the table.
func (s *Store) SetAlias(id, alias string) error {
	return s.UpdateSource(id, func(src *types.LogSource) {
		src.Alias = alias
	})
}

// SetState records an ingestion state transition
func (s *Store) SetState(id string, state types.SourceState, err error) error {
	return s.UpdateSource(id, func(src *types.LogSource) {
		src.State = state
		if err != nil {
			src.LastError = err.Error()
		} else {
			src.LastError = ""
		}
	})
}

// UpdateSource applies fn to the stored source. The ID cannot change.
func (s *Store) UpdateSource(id string, fn func(*types.LogSource)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return logerr.New(logerr.KindNotFound, "update_source", id, logerr.ErrUnknownSource)
	}
	fn(&e.source)
	e.source.ID = id
	s.bumpLocked()
	return nil
}
