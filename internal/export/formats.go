package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/therealutkarshpriyadarshi/logview/internal/analytics"
)

// WriteText renders the commented header followed by one
// "[alias] timestamp content" line per entry.
func WriteText(w io.Writer, doc Document) error {
	bw := bufio.NewWriter(w)
	date := doc.ExportDate.Format(TimeLayout)

	switch {
	case doc.Window != nil:
		fmt.Fprintf(bw, "# Time Filtered Log Entries - %s\n", date)
		fmt.Fprintf(bw, "# Center time: %s\n", doc.Window.Center.Format(TimeLayout))
		fmt.Fprintf(bw, "# Time range: ±%d seconds\n", int(doc.Window.Radius.Seconds()))
		fmt.Fprintf(bw, "# Total filtered entries: %d\n", len(doc.Entries))
		if doc.Search != "" {
			fmt.Fprintf(bw, "# Search filter: '%s'\n", doc.Search)
		}
	case len(doc.Keywords) > 0:
		fmt.Fprintf(bw, "# Exported Keyword-Filtered Log Entries - %s\n", date)
		fmt.Fprintf(bw, "# Keywords: %s\n", strings.Join(doc.Keywords, ", "))
		fmt.Fprintf(bw, "# Total filtered entries: %d\n", len(doc.Entries))
	default:
		fmt.Fprintf(bw, "# Exported Log Entries - %s\n", date)
		fmt.Fprintf(bw, "# Total entries: %d\n", len(doc.Entries))
	}
	fmt.Fprintf(bw, "# Files: %s\n\n", strings.Join(doc.Files, ", "))

	for _, e := range doc.Entries {
		fmt.Fprintf(bw, "[%s] %s %s\n", e.File, e.format(TimeLayout), e.Content)
	}
	return bw.Flush()
}

var csvHeader = []string{"Timestamp", "File", "LineNumber", "Content"}

// WriteCSV renders Timestamp,File,LineNumber,Content rows
func WriteCSV(w io.Writer, doc Document) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range doc.Entries {
		row := []string{e.timestamp(), e.File, strconv.Itoa(e.LineNumber), e.Content}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a CSV export
func ReadCSV(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	if strings.Join(header, ",") != strings.Join(csvHeader, ",") {
		return nil, fmt.Errorf("unexpected csv header: %v", header)
	}

	var entries []Entry
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row: %w", err)
		}
		ts, ok, err := parseTimestamp(row[0])
		if err != nil {
			return nil, err
		}
		line, err := strconv.Atoi(row[2])
		if err != nil {
			return nil, fmt.Errorf("invalid line number %q: %w", row[2], err)
		}
		entries = append(entries, Entry{
			Timestamp:    ts,
			HasTimestamp: ok,
			File:         row[1],
			LineNumber:   line,
			Content:      row[3],
		})
	}
	return entries, nil
}

type exportInfo struct {
	ExportDate   string   `json:"ExportDate" xml:"ExportDate"`
	TotalEntries int      `json:"TotalEntries" xml:"TotalEntries"`
	Files        []string `json:"Files" xml:"Files>File"`
}

type jsonEntry struct {
	Timestamp  *string `json:"Timestamp"`
	File       string  `json:"File"`
	LineNumber int     `json:"LineNumber"`
	Content    string  `json:"Content"`
}

type jsonExport struct {
	ExportInfo exportInfo  `json:"ExportInfo"`
	LogEntries []jsonEntry `json:"LogEntries"`
}

func info(doc Document) exportInfo {
	files := doc.Files
	if files == nil {
		files = []string{}
	}
	return exportInfo{
		ExportDate:   doc.ExportDate.Format(TimeLayout),
		TotalEntries: len(doc.Entries),
		Files:        files,
	}
}

// WriteJSON renders {ExportInfo, LogEntries}. Missing timestamps are null.
func WriteJSON(w io.Writer, doc Document) error {
	out := jsonExport{
		ExportInfo: info(doc),
		LogEntries: make([]jsonEntry, 0, len(doc.Entries)),
	}
	for _, e := range doc.Entries {
		je := jsonEntry{File: e.File, LineNumber: e.LineNumber, Content: e.Content}
		if e.HasTimestamp {
			ts := e.timestamp()
			je.Timestamp = &ts
		}
		out.LogEntries = append(out.LogEntries, je)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// ReadJSON parses a JSON export
func ReadJSON(r io.Reader) ([]Entry, error) {
	var in jsonExport
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, fmt.Errorf("failed to decode json export: %w", err)
	}

	entries := make([]Entry, 0, len(in.LogEntries))
	for _, je := range in.LogEntries {
		e := Entry{File: je.File, LineNumber: je.LineNumber, Content: je.Content}
		if je.Timestamp != nil {
			ts, ok, err := parseTimestamp(*je.Timestamp)
			if err != nil {
				return nil, err
			}
			e.Timestamp, e.HasTimestamp = ts, ok
		}
		entries = append(entries, e)
	}
	return entries, nil
}

type xmlEntry struct {
	Timestamp  string `xml:"Timestamp"`
	File       string `xml:"File"`
	LineNumber int    `xml:"LineNumber"`
	Content    string `xml:"Content"`
}

type xmlExport struct {
	XMLName    xml.Name   `xml:"LogExport"`
	ExportInfo exportInfo `xml:"ExportInfo"`
	LogEntries []xmlEntry `xml:"LogEntries>LogEntry"`
}

// WriteXML renders <LogExport><ExportInfo/><LogEntries>...</LogEntries></LogExport>
func WriteXML(w io.Writer, doc Document) error {
	out := xmlExport{ExportInfo: info(doc)}
	for _, e := range doc.Entries {
		out.LogEntries = append(out.LogEntries, xmlEntry{
			Timestamp:  e.timestamp(),
			File:       e.File,
			LineNumber: e.LineNumber,
			Content:    e.Content,
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	return enc.Flush()
}

// ReadXML parses an XML export
func ReadXML(r io.Reader) ([]Entry, error) {
	var in xmlExport
	if err := xml.NewDecoder(r).Decode(&in); err != nil {
		return nil, fmt.Errorf("failed to decode xml export: %w", err)
	}

	entries := make([]Entry, 0, len(in.LogEntries))
	for _, xe := range in.LogEntries {
		ts, ok, err := parseTimestamp(xe.Timestamp)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{
			Timestamp:    ts,
			HasTimestamp: ok,
			File:         xe.File,
			LineNumber:   xe.LineNumber,
			Content:      xe.Content,
		})
	}
	return entries, nil
}

// WriteRecurring renders the recurring lines report as tab separated rows
func WriteRecurring(w io.Writer, lines []analytics.RecurringLine) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "File Name\tLine Text\tCount\tHas Keywords")
	for _, l := range lines {
		fmt.Fprintf(bw, "%s\t%s\t%d\t%t\n", l.Source, l.Line, l.Count, l.HasKeywords)
	}
	return bw.Flush()
}
