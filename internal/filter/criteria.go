// Package filter evaluates view criteria over the record store.
package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/therealutkarshpriyadarshi/logview/internal/level"
)

// TimestampLayout is the text a timestamp search is matched against
const TimestampLayout = "Jan 02 15:04:05"

// Field selects what a text pattern is matched against
type Field int

const (
	FieldAll Field = iota
	FieldContent
	FieldTimestamp
	FieldSource
)

func (f Field) String() string {
	switch f {
	case FieldContent:
		return "content"
	case FieldTimestamp:
		return "timestamp"
	case FieldSource:
		return "source"
	default:
		return "all"
	}
}

// ParseField parses a field name; the empty string means FieldAll
func ParseField(s string) (Field, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return FieldAll, nil
	case "content":
		return FieldContent, nil
	case "timestamp", "time":
		return FieldTimestamp, nil
	case "source", "file", "alias":
		return FieldSource, nil
	default:
		return FieldAll, fmt.Errorf("unknown search field %q", s)
	}
}

// TimeWindow keeps records within Radius of Center, inclusive
type TimeWindow struct {
	Center time.Time
	Radius time.Duration
}

// NewWindow builds a window, clamping a negative radius to zero
func NewWindow(center time.Time, radius time.Duration) *TimeWindow {
	if radius < 0 {
		radius = 0
	}
	return &TimeWindow{Center: center, Radius: radius}
}

// Validate rejects negative radii
func (w TimeWindow) Validate() error {
	if w.Radius < 0 {
		return fmt.Errorf("time window radius must be non-negative, got %s", w.Radius)
	}
	return nil
}

// Contains reports whether |t - Center| <= Radius
func (w TimeWindow) Contains(t time.Time) bool {
	d := t.Sub(w.Center)
	if d < 0 {
		d = -d
	}
	return d <= w.Radius
}

// Criteria describes the active view. An empty Levels set shows nothing;
// use AllLevels for an unfiltered view.
type Criteria struct {
	Pattern       string
	IsRegex       bool
	CaseSensitive bool
	Field         Field
	Window        *TimeWindow
	Levels        map[string]bool
}

// AllLevels returns a level set enabling every known level
func AllLevels() map[string]bool {
	return level.AllSet()
}

// Unfiltered returns criteria that pass every record of a visible source
func Unfiltered() Criteria {
	return Criteria{Levels: AllLevels()}
}
