package store

import (
	"cmp"
	"slices"

	"github.com/therealutkarshpriyadarshi/logview/pkg/types"
)

// Iterate walks all records in display order until fn returns false. The
// records must not be modified.
func (s *Store) Iterate(fn func(*types.LogRecord) bool) {
	for _, rec := range s.ordered() {
		if !fn(rec) {
			return
		}
	}
}

// Records returns a snapshot of all records in display order
func (s *Store) Records() []*types.LogRecord {
	return slices.Clone(s.ordered())
}

// SourceRecords returns a snapshot of one source's records in line order
func (s *Store) SourceRecords(id string) []*types.LogRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entries[id]; ok {
		return slices.Clone(e.records)
	}
	return nil
}

// ordered returns the cached display order, rebuilding it when stale. The
// returned slice is shared and never mutated after it is built.
func (s *Store) ordered() []*types.LogRecord {
	s.mu.RLock()
	if s.sortedValid && s.sortedVersion == s.version {
		out := s.sorted
		s.mu.RUnlock()
		return out
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sortedValid || s.sortedVersion != s.version {
		s.sorted = s.buildOrderLocked()
		s.sortedVersion = s.version
		s.sortedValid = true
	}
	return s.sorted
}

// buildOrderLocked sorts timestamped records ascending, then places
// untimestamped ones after them. Ties go by source insertion and line.
func (s *Store) buildOrderLocked() []*types.LogRecord {
	seqOf := make(map[string]int, len(s.entries))
	out := make([]*types.LogRecord, 0, s.total)
	for _, id := range s.order {
		e := s.entries[id]
		seqOf[id] = e.seq
		out = append(out, e.records...)
	}

	slices.SortStableFunc(out, func(a, b *types.LogRecord) int {
		if a.HasTimestamp != b.HasTimestamp {
			if a.HasTimestamp {
				return -1
			}
			return 1
		}
		if a.HasTimestamp {
			if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
				return c
			}
		}
		if c := cmp.Compare(seqOf[a.SourceID], seqOf[b.SourceID]); c != 0 {
			return c
		}
		return cmp.Compare(a.LineNumber, b.LineNumber)
	})
	return out
}
