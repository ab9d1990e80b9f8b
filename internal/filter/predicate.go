package filter

import (
	"errors"
	"regexp"
	"strings"

	"github.com/therealutkarshpriyadarshi/logview/internal/level"
	"github.com/therealutkarshpriyadarshi/logview/internal/logerr"
	"github.com/therealutkarshpriyadarshi/logview/pkg/types"
)

// Predicate is compiled Criteria
type Predicate struct {
	levels map[string]bool
	window *TimeWindow
	field  Field

	pattern  string
	re       *regexp.Regexp
	fold     bool
	fallback bool
}

// Compile turns criteria into a predicate. An invalid regex or window
// still yields a usable predicate together with a KindInvalidFilter error:
// the regex degrades to a case-insensitive substring match on content and
// a negative radius is clamped to zero.
func Compile(c Criteria) (*Predicate, error) {
	p := &Predicate{
		levels: c.Levels,
		field:  c.Field,
	}

	var errs []error
	if c.Window != nil {
		if err := c.Window.Validate(); err != nil {
			errs = append(errs, err)
		}
		p.window = NewWindow(c.Window.Center, c.Window.Radius)
	}

	if c.Pattern != "" {
		if c.IsRegex {
			expr := c.Pattern
			if !c.CaseSensitive {
				expr = "(?i)" + expr
			}
			re, err := regexp.Compile(expr)
			if err != nil {
				errs = append(errs, err)
				p.fallback = true
				p.fold = true
				p.pattern = strings.ToLower(c.Pattern)
			} else {
				p.re = re
			}
		} else {
			p.fold = !c.CaseSensitive
			p.pattern = c.Pattern
			if p.fold {
				p.pattern = strings.ToLower(c.Pattern)
			}
		}
	}

	if len(errs) > 0 {
		return p, logerr.New(logerr.KindInvalidFilter, "compile", c.Pattern, errors.Join(errs...))
	}
	return p, nil
}

// Match applies visibility, level, text and time-window tests in that
// order. src is the record's source as found in the store's table.
func (p *Predicate) Match(rec *types.LogRecord, src *types.LogSource) bool {
	if src == nil || !src.Visible {
		return false
	}
	if !p.levels[level.Extract(rec.Content)] {
		return false
	}
	if !p.matchText(rec, src) {
		return false
	}
	if p.window != nil {
		if !rec.HasTimestamp || !p.window.Contains(rec.Timestamp) {
			return false
		}
	}
	return true
}

func (p *Predicate) matchText(rec *types.LogRecord, src *types.LogSource) bool {
	if p.re == nil && p.pattern == "" {
		return true
	}
	if p.fallback {
		return p.contains(rec.Content)
	}

	switch p.field {
	case FieldContent:
		return p.contains(rec.Content)
	case FieldTimestamp:
		return p.contains(timestampText(rec))
	case FieldSource:
		return p.contains(src.DisplayName())
	default:
		return p.contains(rec.Content) ||
			p.contains(timestampText(rec)) ||
			p.contains(src.DisplayName())
	}
}

func (p *Predicate) contains(s string) bool {
	if p.re != nil {
		return p.re.MatchString(s)
	}
	if p.fold {
		s = strings.ToLower(s)
	}
	return strings.Contains(s, p.pattern)
}

func timestampText(rec *types.LogRecord) string {
	if !rec.HasTimestamp {
		return ""
	}
	return rec.Timestamp.Format(TimestampLayout)
}
