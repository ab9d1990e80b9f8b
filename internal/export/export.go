// Package export renders an ordered record sequence as text, CSV, JSON or
// XML, and reads the structured formats back.
package export

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/therealutkarshpriyadarshi/logview/internal/filter"
	"github.com/therealutkarshpriyadarshi/logview/pkg/types"
)

// TimeLayout is the timestamp format of text exports and their headers
const TimeLayout = "2006-01-02 15:04:05"

// EntryTimeLayout is the record timestamp format of CSV, JSON and XML
// exports. It keeps fractional seconds and the UTC offset so reading an
// export back yields the same instant.
const EntryTimeLayout = "2006-01-02 15:04:05.999999999 -07:00"

// Format is an export rendering
type Format string

const (
	FormatText Format = "text"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXML  Format = "xml"
)

// ParseFormat parses a format name
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "txt", "log":
		return FormatText, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "xml":
		return FormatXML, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", s)
	}
}

// FormatFromPath picks the format implied by a file name, ignoring a
// trailing compression extension. Unknown extensions mean text.
func FormatFromPath(path string) Format {
	if CompressionFromPath(path) != CompressionNone {
		path = strings.TrimSuffix(path, filepath.Ext(path))
	}
	f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return FormatText
	}
	return f
}

// Entry is one exported record
type Entry struct {
	Timestamp    time.Time
	HasTimestamp bool
	File         string
	LineNumber   int
	Content      string
}

// Document is everything an export renders. Keywords, Window and Search
// only change the text header.
type Document struct {
	ExportDate time.Time
	Files      []string
	Entries    []Entry

	Keywords []string
	Window   *filter.TimeWindow
	Search   string
}

// NewDocument builds a document from records in the order given
func NewDocument(records []*types.LogRecord, aliasOf func(id string) string, files []string) Document {
	doc := Document{
		ExportDate: time.Now(),
		Files:      files,
		Entries:    make([]Entry, 0, len(records)),
	}
	for _, rec := range records {
		doc.Entries = append(doc.Entries, Entry{
			Timestamp:    rec.Timestamp,
			HasTimestamp: rec.HasTimestamp,
			File:         aliasOf(rec.SourceID),
			LineNumber:   rec.LineNumber,
			Content:      rec.Content,
		})
	}
	return doc
}

func (e Entry) format(layout string) string {
	if !e.HasTimestamp {
		return ""
	}
	return e.Timestamp.Format(layout)
}

func (e Entry) timestamp() string { return e.format(EntryTimeLayout) }

// parseTimestamp reads EntryTimeLayout. Values without an offset, as
// written by TimeLayout, are taken as local time.
func parseTimestamp(s string) (time.Time, bool, error) {
	if s == "" {
		return time.Time{}, false, nil
	}
	ts, err := time.Parse(EntryTimeLayout, s)
	if err != nil {
		var lerr error
		if ts, lerr = time.ParseInLocation(TimeLayout, s, time.Local); lerr != nil {
			return time.Time{}, false, fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
	}
	return ts, true, nil
}

// Write renders doc in the given format
func Write(w io.Writer, format Format, doc Document) error {
	switch format {
	case FormatText:
		return WriteText(w, doc)
	case FormatCSV:
		return WriteCSV(w, doc)
	case FormatJSON:
		return WriteJSON(w, doc)
	case FormatXML:
		return WriteXML(w, doc)
	default:
		return fmt.Errorf("unsupported export format: %s", format)
	}
}

// Read parses a structured export
func Read(r io.Reader, format Format) ([]Entry, error) {
	switch format {
	case FormatCSV:
		return ReadCSV(r)
	case FormatJSON:
		return ReadJSON(r)
	case FormatXML:
		return ReadXML(r)
	default:
		return nil, fmt.Errorf("format %s cannot be read back", format)
	}
}

// WriteFile renders doc to path. Format and compression follow the file
// extension, e.g. "out.json.gz".
func WriteFile(path string, doc Document) error {
	compressor, err := GetCompressor(CompressionFromPath(path))
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := Write(&buf, FormatFromPath(path), doc); err != nil {
		return fmt.Errorf("failed to render export: %w", err)
	}

	data, err := compressor.Compress(buf.Bytes())
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename export: %w", err)
	}
	return nil
}

// ReadFile parses a structured export written by WriteFile
func ReadFile(path string) ([]Entry, error) {
	compressor, err := GetCompressor(CompressionFromPath(path))
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read export: %w", err)
	}
	data, err = compressor.Decompress(data)
	if err != nil {
		return nil, err
	}
	return Read(bytes.NewReader(data), FormatFromPath(path))
}
