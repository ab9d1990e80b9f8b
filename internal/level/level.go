// Package level extracts a severity level from free-form log content.
//
// Two entry points exist on purpose. The live filter path (Extract)
// defaults to INFO so that lines without a level stay visible under the
// default level set; the analytics path (ExtractForAnalytics) defaults to
// UNKNOWN so that distributions do not inflate INFO.
package level

import "strings"

const (
	Fatal   = "FATAL"
	Error   = "ERROR"
	Warn    = "WARN"
	Info    = "INFO"
	Debug   = "DEBUG"
	Trace   = "TRACE"
	Unknown = "UNKNOWN"
)

var priority = []struct {
	level   string
	needles []string
}{
	{Fatal, []string{"FATAL", "CRITICAL"}},
	{Error, []string{"ERROR", "ERR"}},
	{Warn, []string{"WARN", "WARNING"}},
	{Info, []string{"INFO"}},
	{Debug, []string{"DEBUG", "DBG"}},
	{Trace, []string{"TRACE"}},
}

func detect(content string) (string, bool) {
	upper := strings.ToUpper(content)
	for _, p := range priority {
		for _, needle := range p.needles {
			if strings.Contains(upper, needle) {
				return p.level, true
			}
		}
	}
	return "", false
}

// Extract returns the level used by filtering, defaulting to INFO
func Extract(content string) string {
	if lvl, ok := detect(content); ok {
		return lvl
	}
	return Info
}

// ExtractForAnalytics returns the level used by analytics, defaulting to UNKNOWN
func ExtractForAnalytics(content string) string {
	if lvl, ok := detect(content); ok {
		return lvl
	}
	return Unknown
}

// All returns every level Extract can produce, in priority order
func All() []string {
	return []string{Fatal, Error, Warn, Info, Debug, Trace}
}

// AllSet returns All as a set, the "unfiltered" level selection
func AllSet() map[string]bool {
	set := make(map[string]bool, len(priority))
	for _, lvl := range All() {
		set[lvl] = true
	}
	return set
}
