// Package timestamp resolves calendar timestamps embedded in log lines.
//
// Grammars are tried in declaration order and the first grammar whose
// regex matches and whose layout parses wins. There is no scoring between
// competing grammars.
//
// Known limitation: year-less syslog stamps ("Jan  2 15:04:05") take the
// current calendar year, and bare "15:04:05" stamps take the current day.
// Logs spanning a New Year boundary will therefore misorder. This is left
// as is on purpose; guessing the year would silently reorder other logs.
package timestamp

import (
	"regexp"
	"strings"
	"time"
)

// Grammar is one timestamp family: a cheap match regex plus the ordered
// layouts attempted against the matched text.
type Grammar struct {
	Name    string
	Layouts []string

	pattern  *regexp.Regexp
	prepare  func(string) string
	yearless bool
	timeOnly bool
}

var whitespace = regexp.MustCompile(`\s+`)

func collapse(s string) string {
	return whitespace.ReplaceAllString(strings.TrimSpace(s), " ")
}

var defaultGrammars = []Grammar{
	{
		Name:    "iso8601",
		pattern: regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:[.,]\d{1,9})?(?:Z|[+-]\d{2}:?\d{2})?`),
		Layouts: []string{
			"2006-01-02T15:04:05Z07:00",
			"2006-01-02T15:04:05Z0700",
			"2006-01-02T15:04:05",
		},
		prepare: func(s string) string {
			s = strings.Replace(s, " ", "T", 1)
			return strings.Replace(s, ",", ".", 1)
		},
	},
	{
		Name:    "syslog",
		pattern: regexp.MustCompile(`\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}\b`),
		Layouts: []string{
			"Jan 2 15:04:05",
		},
		prepare:  collapse,
		yearless: true,
	},
	{
		Name:    "us",
		pattern: regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\s+\d{1,2}:\d{2}:\d{2}(?:\s*[AaPp][Mm]\b)?`),
		Layouts: []string{
			"1/2/2006 3:04:05 PM",
			"1/2/2006 15:04:05",
		},
		prepare: func(s string) string {
			s = strings.ToUpper(collapse(s))
			for _, mark := range []string{"AM", "PM"} {
				if strings.HasSuffix(s, mark) && !strings.HasSuffix(s, " "+mark) {
					s = strings.TrimSuffix(s, mark) + " " + mark
				}
			}
			return s
		},
	},
	{
		Name:    "european",
		pattern: regexp.MustCompile(`\b\d{1,2}\.\d{1,2}\.\d{4}\s+\d{2}:\d{2}:\d{2}\b`),
		Layouts: []string{
			"2.1.2006 15:04:05",
		},
		prepare: collapse,
	},
	{
		Name:    "apache",
		pattern: regexp.MustCompile(`\b\d{2}/(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)/\d{4}:\d{2}:\d{2}:\d{2}\s[+-]\d{4}`),
		Layouts: []string{
			"02/Jan/2006:15:04:05 -0700",
		},
	},
	{
		Name:    "time",
		pattern: regexp.MustCompile(`\b\d{2}:\d{2}:\d{2}(?:[.,]\d{1,9})?\b`),
		Layouts: []string{
			"15:04:05",
		},
		prepare: func(s string) string {
			return strings.Replace(s, ",", ".", 1)
		},
		timeOnly: true,
	},
}

// Option configures a Resolver
type Option func(*Resolver)

// WithClock sets the clock consulted for year-less and date-less grammars
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// WithLocation sets the zone applied to timestamps that carry no offset
func WithLocation(loc *time.Location) Option {
	return func(r *Resolver) {
		r.loc = loc
	}
}

// Resolver finds the first supported timestamp in a line. It is safe for
// concurrent use.
type Resolver struct {
	grammars []Grammar
	now      func() time.Time
	loc      *time.Location
}

// NewResolver creates a Resolver with the built-in grammars
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		grammars: defaultGrammars,
		now:      time.Now,
		loc:      time.Local,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Grammars returns the grammars in the order they are tried
func (r *Resolver) Grammars() []Grammar {
	out := make([]Grammar, len(r.grammars))
	copy(out, r.grammars)
	return out
}

// Resolve returns the timestamp found in line and whether one matched
func (r *Resolver) Resolve(line string) (time.Time, bool) {
	ts, _, ok := r.ResolveGrammar(line)
	return ts, ok
}

// ResolveGrammar is Resolve that also reports the winning grammar name
func (r *Resolver) ResolveGrammar(line string) (time.Time, string, bool) {
	if strings.TrimSpace(line) == "" {
		return time.Time{}, "", false
	}

	for i := range r.grammars {
		g := &r.grammars[i]
		candidate := g.pattern.FindString(line)
		if candidate == "" {
			continue
		}
		if g.prepare != nil {
			candidate = g.prepare(candidate)
		}
		if ts, ok := r.parse(g, candidate); ok {
			return ts, g.Name, true
		}
	}

	return time.Time{}, "", false
}

func (r *Resolver) parse(g *Grammar, value string) (time.Time, bool) {
	for _, layout := range g.Layouts {
		ts, err := time.ParseInLocation(layout, value, r.loc)
		if err != nil {
			continue
		}

		switch {
		case g.yearless:
			year := r.now().In(r.loc).Year()
			if ts.Month() == time.February && ts.Day() == 29 && !isLeap(year) {
				return time.Time{}, false
			}
			ts = time.Date(year, ts.Month(), ts.Day(),
				ts.Hour(), ts.Minute(), ts.Second(), ts.Nanosecond(), r.loc)
		case g.timeOnly:
			today := r.now().In(r.loc)
			ts = time.Date(today.Year(), today.Month(), today.Day(),
				ts.Hour(), ts.Minute(), ts.Second(), ts.Nanosecond(), r.loc)
		}
		return ts, true
	}
	return time.Time{}, false
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
