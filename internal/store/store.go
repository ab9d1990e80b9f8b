// Package store holds the in-memory, multi-source record collection.
//
// Records reference their source by ID only; alias and visibility are
// always looked up through the source table. Display order is computed
// lazily and cached until the next mutation.
package store

import (
	"fmt"
	"slices"
	"sync"

	"github.com/therealutkarshpriyadarshi/logview/internal/logerr"
	"github.com/therealutkarshpriyadarshi/logview/pkg/types"
)

// DefaultMaxSources is the default cap on concurrently loaded sources
const DefaultMaxSources = 20

// Palette is the display colour cycle assigned by insertion order
var Palette = []string{
	"LightBlue", "LightGreen", "LightYellow", "LightPink", "LightCyan",
	"Lavender", "PeachPuff", "LightCoral", "PaleGreen", "LightSalmon",
	"Khaki", "Thistle", "PowderBlue", "MistyRose", "Honeydew",
	"LemonChiffon", "AliceBlue", "Beige", "Wheat", "Plum",
}

type entry struct {
	source  types.LogSource
	seq     int
	records []*types.LogRecord
}

// Store is safe for concurrent use. Writers of the same source must
// additionally hold LockSource so that appends and swaps never interleave.
type Store struct {
	mu         sync.RWMutex
	maxSources int
	entries    map[string]*entry
	order      []string
	nextSeq    int
	total      int
	version    uint64

	sorted        []*types.LogRecord
	sortedVersion uint64
	sortedValid   bool

	wmu     sync.Mutex
	writers map[string]*sync.Mutex

	changes chan uint64
}

// New creates a store capped at maxSources. A non-positive cap means
// DefaultMaxSources.
func New(maxSources int) *Store {
	if maxSources <= 0 {
		maxSources = DefaultMaxSources
	}
	return &Store{
		maxSources: maxSources,
		entries:    make(map[string]*entry),
		writers:    make(map[string]*sync.Mutex),
		changes:    make(chan uint64, 1),
	}
}

// MaxSources returns the source cap
func (s *Store) MaxSources() int {
	return s.maxSources
}

// AddSource registers src. The store keeps its own copy.
func (s *Store) AddSource(src *types.LogSource) error {
	if src == nil || src.ID == "" {
		return fmt.Errorf("source must have an id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[src.ID]; exists {
		return fmt.Errorf("source %s already exists", src.ID)
	}
	if len(s.entries) >= s.maxSources {
		return logerr.New(logerr.KindCapacity, "add_source", src.Path,
			fmt.Errorf("%w (%d)", logerr.ErrSourceLimit, s.maxSources))
	}

	e := &entry{source: *src, seq: s.nextSeq}
	if e.source.Color == "" {
		e.source.Color = Palette[s.nextSeq%len(Palette)]
	}
	s.nextSeq++
	s.entries[src.ID] = e
	s.order = append(s.order, src.ID)
	s.bumpLocked()
	return nil
}

// RemoveSource drops a source and all of its records, returning how many
// records were removed. Unknown IDs remove nothing.
func (s *Store) RemoveSource(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return 0
	}
	removed := len(e.records)
	delete(s.entries, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	s.total -= removed
	s.bumpLocked()

	s.wmu.Lock()
	delete(s.writers, id)
	s.wmu.Unlock()

	return removed
}

// AppendRecords adds records to the end of a source. Each record is
// stamped with the source ID.
func (s *Store) AppendRecords(id string, recs []*types.LogRecord) error {
	if len(recs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return logerr.New(logerr.KindNotFound, "append_records", id, logerr.ErrUnknownSource)
	}
	for _, rec := range recs {
		rec.SourceID = id
	}
	e.records = append(e.records, recs...)
	e.source.LineCount = len(e.records)
	s.total += len(recs)
	s.bumpLocked()
	return nil
}

// ReplaceRecords swaps every record of a source in one step. Readers see
// either the old set or the new one.
func (s *Store) ReplaceRecords(id string, recs []*types.LogRecord) error {
	for _, rec := range recs {
		rec.SourceID = id
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return logerr.New(logerr.KindNotFound, "replace_records", id, logerr.ErrUnknownSource)
	}
	s.total += len(recs) - len(e.records)
	e.records = recs
	e.source.LineCount = len(recs)
	s.bumpLocked()
	return nil
}

// TotalCount returns the number of records across all sources
func (s *Store) TotalCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// CountForSource returns the number of records of one source
func (s *Store) CountForSource(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entries[id]; ok {
		return len(e.records)
	}
	return 0
}

// SourceCount returns the number of registered sources
func (s *Store) SourceCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Version increases on every mutation
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Changes delivers the latest version after mutations. Notifications are
// dropped while the previous one is unread.
func (s *Store) Changes() <-chan uint64 {
	return s.changes
}

func (s *Store) bumpLocked() {
	s.version++
	select {
	case s.changes <- s.version:
	default:
	}
}

// LockSource serializes writers of one source and returns the unlock func
func (s *Store) LockSource(id string) func() {
	s.wmu.Lock()
	m, ok := s.writers[id]
	if !ok {
		m = &sync.Mutex{}
		s.writers[id] = m
	}
	s.wmu.Unlock()

	m.Lock()
	return m.Unlock
}
