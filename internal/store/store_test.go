package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/therealutkarshpriyadarshi/logview/internal/logerr"
	"github.com/therealutkarshpriyadarshi/logview/pkg/types"
)

var base = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func rec(line int, offset time.Duration, stamped bool) *types.LogRecord {
	r := &types.LogRecord{
		Content:    fmt.Sprintf("line %d", line),
		LineNumber: line,
	}
	if stamped {
		r.Timestamp = base.Add(offset)
		r.HasTimestamp = true
	}
	return r
}

func addSource(t *testing.T, s *Store, id string) {
	t.Helper()
	if err := s.AddSource(&types.LogSource{ID: id, Name: id + ".log", Alias: id, Visible: true}); err != nil {
		t.Fatalf("AddSource(%s) error = %v", id, err)
	}
}

func TestStore_SourceLimit(t *testing.T) {
	s := New(2)
	addSource(t, s, "a")
	addSource(t, s, "b")

	err := s.AddSource(&types.LogSource{ID: "c", Path: "/tmp/c.log"})
	if err == nil {
		t.Fatal("expected capacity error")
	}
	if !errors.Is(err, logerr.ErrSourceLimit) {
		t.Errorf("error = %v, want ErrSourceLimit", err)
	}
	if !logerr.IsKind(err, logerr.KindCapacity) {
		t.Errorf("kind = %s, want %s", logerr.KindOf(err), logerr.KindCapacity)
	}
	if s.SourceCount() != 2 {
		t.Errorf("SourceCount() = %d, want 2", s.SourceCount())
	}
}

func TestStore_DuplicateAndInvalidSource(t *testing.T) {
	s := New(0)
	addSource(t, s, "a")
	if err := s.AddSource(&types.LogSource{ID: "a"}); err == nil {
		t.Error("expected duplicate source to fail")
	}
	if err := s.AddSource(&types.LogSource{}); err == nil {
		t.Error("expected source without id to fail")
	}
	if s.MaxSources() != DefaultMaxSources {
		t.Errorf("MaxSources() = %d, want %d", s.MaxSources(), DefaultMaxSources)
	}
}

func TestStore_AppendAndCounts(t *testing.T) {
	s := New(0)
	addSource(t, s, "a")

	if err := s.AppendRecords("a", []*types.LogRecord{rec(1, 0, true), rec(2, time.Second, true)}); err != nil {
		t.Fatalf("AppendRecords() error = %v", err)
	}
	if err := s.AppendRecords("missing", []*types.LogRecord{rec(1, 0, true)}); !errors.Is(err, logerr.ErrUnknownSource) {
		t.Errorf("AppendRecords(missing) error = %v, want ErrUnknownSource", err)
	}

	if got := s.TotalCount(); got != 2 {
		t.Errorf("TotalCount() = %d, want 2", got)
	}
	if got := s.CountForSource("a"); got != 2 {
		t.Errorf("CountForSource(a) = %d, want 2", got)
	}
	for _, r := range s.Records() {
		if r.SourceID != "a" {
			t.Errorf("record SourceID = %q, want a", r.SourceID)
		}
	}
	src, _ := s.Source("a")
	if src.LineCount != 2 {
		t.Errorf("LineCount = %d, want 2", src.LineCount)
	}
}

func TestStore_DisplayOrder(t *testing.T) {
	s := New(0)
	addSource(t, s, "a")
	addSource(t, s, "b")

	// a: 10:00:05, no stamp, 10:00:01
	_ = s.AppendRecords("a", []*types.LogRecord{
		rec(1, 5*time.Second, true),
		rec(2, 0, false),
		rec(3, time.Second, true),
	})
	// b: 10:00:01 (ties with a:3), no stamp, 10:00:00
	_ = s.AppendRecords("b", []*types.LogRecord{
		rec(1, time.Second, true),
		rec(2, 0, false),
		rec(3, 0, true),
	})

	want := []string{"b:3", "a:3", "b:1", "a:1", "a:2", "b:2"}
	var got []string
	s.Iterate(func(r *types.LogRecord) bool {
		got = append(got, fmt.Sprintf("%s:%d", r.SourceID, r.LineNumber))
		return true
	})

	if len(got) != len(want) {
		t.Fatalf("Iterate() yielded %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d = %s, want %s (full order %v)", i, got[i], want[i], got)
		}
	}
}

func TestStore_IterateStops(t *testing.T) {
	s := New(0)
	addSource(t, s, "a")
	_ = s.AppendRecords("a", []*types.LogRecord{rec(1, 0, true), rec(2, time.Second, true), rec(3, 2*time.Second, true)})

	count := 0
	s.Iterate(func(*types.LogRecord) bool {
		count++
		return count < 2
	})
	if count != 2 {
		t.Errorf("Iterate visited %d records, want 2", count)
	}
}

func TestStore_RemoveSourceKeepsOthersInOrder(t *testing.T) {
	s := New(0)
	addSource(t, s, "a")
	addSource(t, s, "b")

	for i := 1; i <= 5; i++ {
		_ = s.AppendRecords("a", []*types.LogRecord{rec(i, time.Duration(i*2)*time.Second, true)})
		_ = s.AppendRecords("b", []*types.LogRecord{rec(i, time.Duration(i*2+1)*time.Second, i%2 == 0)})
	}

	before := []int{}
	for _, r := range s.Records() {
		if r.SourceID == "b" {
			before = append(before, r.LineNumber)
		}
	}

	if removed := s.RemoveSource("a"); removed != 5 {
		t.Errorf("RemoveSource() = %d, want 5", removed)
	}
	if s.RemoveSource("a") != 0 {
		t.Error("second RemoveSource should remove nothing")
	}

	after := s.Records()
	if len(after) != 5 {
		t.Fatalf("remaining records = %d, want 5", len(after))
	}
	for i, r := range after {
		if r.SourceID != "b" {
			t.Errorf("record %d belongs to %s", i, r.SourceID)
		}
		if r.LineNumber != before[i] {
			t.Errorf("record %d line = %d, want %d", i, r.LineNumber, before[i])
		}
	}
	if s.TotalCount() != 5 {
		t.Errorf("TotalCount() = %d, want 5", s.TotalCount())
	}
}

func TestStore_ReplaceRecords(t *testing.T) {
	s := New(0)
	addSource(t, s, "a")
	_ = s.AppendRecords("a", []*types.LogRecord{rec(1, 0, true), rec(2, 0, true)})

	v := s.Version()
	if err := s.ReplaceRecords("a", []*types.LogRecord{rec(1, 0, false)}); err != nil {
		t.Fatalf("ReplaceRecords() error = %v", err)
	}
	if s.Version() <= v {
		t.Error("version did not advance after replace")
	}
	if s.TotalCount() != 1 || s.CountForSource("a") != 1 {
		t.Errorf("counts after replace = %d/%d, want 1/1", s.TotalCount(), s.CountForSource("a"))
	}
	if err := s.ReplaceRecords("missing", nil); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestStore_AliasAndVisibility(t *testing.T) {
	s := New(0)
	addSource(t, s, "a")

	if err := s.SetAlias("a", "frontend"); err != nil {
		t.Fatalf("SetAlias() error = %v", err)
	}
	if got := s.AliasOf("a"); got != "frontend" {
		t.Errorf("AliasOf() = %q, want frontend", got)
	}
	if err := s.SetVisible("a", false); err != nil {
		t.Fatalf("SetVisible() error = %v", err)
	}
	src, _ := s.Source("a")
	if src.Visible {
		t.Error("source should be hidden")
	}
	if err := s.SetVisible("missing", true); !logerr.IsKind(err, logerr.KindNotFound) {
		t.Errorf("SetVisible(missing) error = %v, want not_found", err)
	}
	if err := s.SetState("a", types.StateLoadFailed, errors.New("boom")); err != nil {
		t.Fatalf("SetState() error = %v", err)
	}
	src, _ = s.Source("a")
	if src.State != types.StateLoadFailed || src.LastError != "boom" {
		t.Errorf("state = %s/%q, want load_failed/boom", src.State, src.LastError)
	}
}

func TestStore_PaletteAndSourceOrder(t *testing.T) {
	s := New(0)
	addSource(t, s, "a")
	addSource(t, s, "b")

	sources := s.Sources()
	if len(sources) != 2 || sources[0].ID != "a" || sources[1].ID != "b" {
		t.Fatalf("Sources() = %+v", sources)
	}
	if sources[0].Color != Palette[0] || sources[1].Color != Palette[1] {
		t.Errorf("colors = %s, %s", sources[0].Color, sources[1].Color)
	}
}

func TestStore_Changes(t *testing.T) {
	s := New(0)
	addSource(t, s, "a")
	addSource(t, s, "b")

	select {
	case v := <-s.Changes():
		if v != 1 {
			t.Errorf("first notification = %d, want 1 (later ones are dropped)", v)
		}
	default:
		t.Fatal("expected a change notification")
	}

	select {
	case v := <-s.Changes():
		t.Errorf("unexpected notification %d", v)
	default:
	}
}

func TestStore_ConcurrentReadersAndWriters(t *testing.T) {
	s := New(0)
	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		addSource(t, s, id)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 1; i <= 200; i++ {
				unlock := s.LockSource(id)
				_ = s.AppendRecords(id, []*types.LogRecord{rec(i, time.Duration(i)*time.Millisecond, i%3 != 0)})
				unlock()
			}
		}(id)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = s.Records()
				_ = s.TotalCount()
			}
		}()
	}
	wg.Wait()

	if got := s.TotalCount(); got != 800 {
		t.Errorf("TotalCount() = %d, want 800", got)
	}
	for _, id := range ids {
		last := 0
		for _, r := range s.SourceRecords(id) {
			if r.LineNumber <= last {
				t.Fatalf("source %s out of line order: %d after %d", id, r.LineNumber, last)
			}
			last = r.LineNumber
		}
	}
}
