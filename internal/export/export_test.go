package export

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/therealutkarshpriyadarshi/logview/internal/analytics"
	"github.com/therealutkarshpriyadarshi/logview/internal/filter"
	"github.com/therealutkarshpriyadarshi/logview/internal/timestamp"
	"github.com/therealutkarshpriyadarshi/logview/pkg/types"
)

func sampleDocument() Document {
	t0 := time.Date(2024, 1, 15, 10, 30, 0, 0, time.Local)
	records := []*types.LogRecord{
		{Content: `2024-01-15 10:30:00 ERROR "quoted", with comma`, SourceID: "a", LineNumber: 1, Timestamp: t0, HasTimestamp: true},
		{Content: "  indented <xml> & stuff", SourceID: "b", LineNumber: 7},
		{Content: "2024-01-15 10:30:05 INFO done", SourceID: "a", LineNumber: 2, Timestamp: t0.Add(5 * time.Second), HasTimestamp: true},
	}
	aliases := map[string]string{"a": "api", "b": "worker"}
	doc := NewDocument(records, func(id string) string { return aliases[id] }, []string{"api", "worker"})
	doc.ExportDate = time.Date(2024, 2, 1, 8, 0, 0, 0, time.Local)
	return doc
}

func assertEntries(t *testing.T, got, want []Entry) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("entries = %d, want %d", len(got), len(want))
	}
	for i := range want {
		g, w := got[i], want[i]
		if g.Content != w.Content || g.File != w.File || g.LineNumber != w.LineNumber || g.HasTimestamp != w.HasTimestamp {
			t.Errorf("entry %d = %+v, want %+v", i, g, w)
		}
		if w.HasTimestamp && !g.Timestamp.Equal(w.Timestamp) {
			t.Errorf("entry %d timestamp = %v, want %v", i, g.Timestamp, w.Timestamp)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	doc := sampleDocument()

	for _, format := range []Format{FormatCSV, FormatJSON, FormatXML} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := Write(&buf, format, doc); err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			got, err := Read(&buf, format)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			assertEntries(t, got, doc.Entries)
		})
	}
}

func TestRoundTrip_OffsetsAndFractions(t *testing.T) {
	saved := time.Local
	time.Local = time.FixedZone("EST", -5*60*60)
	t.Cleanup(func() { time.Local = saved })

	resolver := timestamp.NewResolver()
	lines := []string{
		"2024-01-01T10:00:00.250Z ERROR upstream reset",
		`127.0.0.1 - - [10/Oct/2024:13:55:36 +0200] "GET / HTTP/1.1" 200`,
	}
	var records []*types.LogRecord
	for i, line := range lines {
		ts, ok := resolver.Resolve(line)
		if !ok {
			t.Fatalf("line %d not resolved", i)
		}
		records = append(records, &types.LogRecord{
			Content: line, SourceID: "a", LineNumber: i + 1, Timestamp: ts, HasTimestamp: true,
		})
	}
	doc := NewDocument(records, func(string) string { return "edge" }, []string{"edge"})

	for _, format := range []Format{FormatCSV, FormatJSON, FormatXML} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := Write(&buf, format, doc); err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			got, err := Read(&buf, format)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			assertEntries(t, got, doc.Entries)
		})
	}
}

func TestParseTimestamp_LocalLayout(t *testing.T) {
	ts, ok, err := parseTimestamp("2024-01-15 10:30:00")
	if err != nil || !ok {
		t.Fatalf("parseTimestamp() = %v, %v, %v", ts, ok, err)
	}
	if want := time.Date(2024, 1, 15, 10, 30, 0, 0, time.Local); !ts.Equal(want) {
		t.Errorf("timestamp = %v, want %v", ts, want)
	}
}

func TestWriteFileRoundTripCompressed(t *testing.T) {
	doc := sampleDocument()
	dir := t.TempDir()

	for _, name := range []string{"out.csv", "out.json.gz", "out.xml.sz", "out.csv.gz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := WriteFile(path, doc); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			got, err := ReadFile(path)
			if err != nil {
				t.Fatalf("ReadFile() error = %v", err)
			}
			assertEntries(t, got, doc.Entries)
		})
	}
}

func TestWriteText(t *testing.T) {
	doc := sampleDocument()
	var buf bytes.Buffer
	if err := WriteText(&buf, doc); err != nil {
		t.Fatalf("WriteText() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"# Exported Log Entries - 2024-02-01 08:00:00\n",
		"# Total entries: 3\n",
		"# Files: api, worker\n\n",
		"[api] 2024-01-15 10:30:00 2024-01-15 10:30:00 ERROR",
		"[worker]    indented <xml> & stuff\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text export missing %q:\n%s", want, out)
		}
	}
}

func TestWriteText_Headers(t *testing.T) {
	doc := sampleDocument()
	doc.Keywords = []string{"Error", "Timeout"}
	var buf bytes.Buffer
	_ = WriteText(&buf, doc)
	if !strings.HasPrefix(buf.String(), "# Exported Keyword-Filtered Log Entries") ||
		!strings.Contains(buf.String(), "# Keywords: Error, Timeout\n") {
		t.Errorf("keyword header wrong:\n%s", buf.String())
	}

	doc.Keywords = nil
	doc.Window = filter.NewWindow(time.Date(2024, 1, 15, 10, 30, 0, 0, time.Local), 30*time.Second)
	doc.Search = "timeout"
	buf.Reset()
	_ = WriteText(&buf, doc)
	for _, want := range []string{"# Time Filtered Log Entries", "# Center time: 2024-01-15 10:30:00", "# Time range: ±30 seconds", "# Search filter: 'timeout'"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("time header missing %q:\n%s", want, buf.String())
		}
	}
}

func TestWriteJSON_NullTimestamp(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleDocument()); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"Timestamp": null`) {
		t.Errorf("missing timestamp should be null:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), `"TotalEntries": 3`) {
		t.Errorf("export info missing:\n%s", buf.String())
	}
}

func TestWriteXML_Shape(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXML(&buf, sampleDocument()); err != nil {
		t.Fatalf("WriteXML() error = %v", err)
	}
	for _, want := range []string{"<LogExport>", "<ExportInfo>", "<File>api</File>", "<LogEntries>", "<LogEntry>", "<LineNumber>7</LineNumber>"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("xml missing %q", want)
		}
	}
}

func TestReadErrors(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("a,b,c,d\n")); err == nil {
		t.Error("expected header error")
	}
	if _, err := ReadCSV(strings.NewReader("Timestamp,File,LineNumber,Content\nbad,x,1,y\n")); err == nil {
		t.Error("expected timestamp error")
	}
	if _, err := ReadJSON(strings.NewReader("{")); err == nil {
		t.Error("expected json error")
	}
	if _, err := Read(strings.NewReader(""), FormatText); err == nil {
		t.Error("text exports cannot be read back")
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path        string
		format      Format
		compression Compression
	}{
		{"out.csv", FormatCSV, CompressionNone},
		{"out.JSON", FormatJSON, CompressionNone},
		{"out.xml.gz", FormatXML, CompressionGzip},
		{"out.json.sz", FormatJSON, CompressionSnappy},
		{"out.txt", FormatText, CompressionNone},
		{"out", FormatText, CompressionNone},
	}
	for _, tt := range tests {
		if got := FormatFromPath(tt.path); got != tt.format {
			t.Errorf("FormatFromPath(%q) = %s, want %s", tt.path, got, tt.format)
		}
		if got := CompressionFromPath(tt.path); got != tt.compression {
			t.Errorf("CompressionFromPath(%q) = %s, want %s", tt.path, got, tt.compression)
		}
	}
	if _, err := ParseFormat("yaml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestCompressors(t *testing.T) {
	data := []byte(strings.Repeat("log line ", 100))
	for _, c := range []Compression{CompressionNone, CompressionGzip, CompressionSnappy} {
		comp, err := GetCompressor(c)
		if err != nil {
			t.Fatalf("GetCompressor(%s) error = %v", c, err)
		}
		packed, err := comp.Compress(data)
		if err != nil {
			t.Fatalf("%s Compress() error = %v", c, err)
		}
		unpacked, err := comp.Decompress(packed)
		if err != nil {
			t.Fatalf("%s Decompress() error = %v", c, err)
		}
		if !bytes.Equal(unpacked, data) {
			t.Errorf("%s round trip mismatch", c)
		}
	}
	if _, err := GetCompressor("lz4"); err == nil {
		t.Error("expected error for lz4")
	}
}

func TestWriteRecurring(t *testing.T) {
	var buf bytes.Buffer
	err := WriteRecurring(&buf, []analytics.RecurringLine{{Source: "api", Line: "tick", Count: 4, HasKeywords: false}})
	if err != nil {
		t.Fatalf("WriteRecurring() error = %v", err)
	}
	if buf.String() != "File Name\tLine Text\tCount\tHas Keywords\napi\ttick\t4\tfalse\n" {
		t.Errorf("output = %q", buf.String())
	}
}
