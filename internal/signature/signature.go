// Package signature reduces log messages to comparable grouping keys by
// replacing variable tokens with placeholders.
package signature

import (
	"regexp"
	"strings"
)

// Placeholders substituted into signatures
const (
	Timestamp = "[TIMESTAMP]"
	Num       = "[NUM]"
	Hex       = "[HEX]"
	GUID      = "[GUID]"
	IP        = "[IP]"
	Path      = "[PATH]"
)

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Rules run top to bottom. GUIDs, IPs and hex literals are replaced before
// bare integers, otherwise their digit runs would already be [NUM].
var rules = []rule{
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T\s]+\d{2}:\d{2}:\d{2}(?:[.,]\d+)?(?:Z|[+-]\d{2}:?\d{2})?`), Timestamp},
	{regexp.MustCompile(`\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}\b`), Timestamp},
	{regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`), GUID},
	{regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), IP},
	{regexp.MustCompile(`\b0[xX][0-9A-Fa-f]+\b`), Hex},
	{regexp.MustCompile(`\b\d+\b`), Num},
	{regexp.MustCompile(`\b[A-Za-z]:\\\S*`), Path},
}

var spaces = regexp.MustCompile(`\s+`)

// Normalize returns the signature of text. Normalize is idempotent:
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	out := text
	for _, r := range rules {
		out = r.pattern.ReplaceAllLiteralString(out, r.replacement)
	}
	out = spaces.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}
