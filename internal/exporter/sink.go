package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Format selects the record encoding
type Format string

const (
	// FormatLines joins fields with commas and never quotes
	FormatLines Format = "lines"
	// FormatCSV quotes fields that need it
	FormatCSV Format = "csv"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatLines, "":
		return FormatLines, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unsupported output format: %s", s)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// LineSink writes each header or record as one comma-joined line
type LineSink struct {
	w io.Writer
}

// NewLineSink creates a line sink on w
func NewLineSink(w io.Writer) *LineSink {
	return &LineSink{w: w}
}

// WriteHeader writes the header line
func (s *LineSink) WriteHeader(fields []string) error {
	return s.writeLine(fields)
}

// WriteRecord writes one record line
func (s *LineSink) WriteRecord(fields []string) error {
	return s.writeLine(fields)
}

func (s *LineSink) writeLine(fields []string) error {
	_, err := io.WriteString(s.w, strings.Join(fields, ",")+"\n")
	return err
}

// CSVSink writes quoted CSV
type CSVSink struct {
	w       io.Writer
	csv     *csv.Writer
	bom     bool
	started bool
}

// NewCSVSink creates a CSV sink on w. With bom set, a UTF-8 byte order
// mark precedes the first line.
func NewCSVSink(w io.Writer, bom bool) *CSVSink {
	return &CSVSink{w: w, csv: csv.NewWriter(w), bom: bom}
}

// WriteHeader writes the header row
func (s *CSVSink) WriteHeader(fields []string) error {
	return s.write(fields)
}

// WriteRecord writes one record row
func (s *CSVSink) WriteRecord(fields []string) error {
	return s.write(fields)
}

func (s *CSVSink) write(fields []string) error {
	if !s.started {
		s.started = true
		if s.bom {
			if _, err := s.w.Write(utf8BOM); err != nil {
				return fmt.Errorf("failed to write BOM: %w", err)
			}
		}
	}
	if err := s.csv.Write(fields); err != nil {
		return err
	}
	// Flush per row so write errors surface on the call that caused them
	s.csv.Flush()
	return s.csv.Error()
}

// MemorySink keeps the header and up to Limit records in memory. Records
// past the limit are counted but dropped.
type MemorySink struct {
	Limit   int
	Header  []string
	Records [][]string
	Total   int
}

// NewMemorySink creates a memory sink; limit <= 0 keeps every record
func NewMemorySink(limit int) *MemorySink {
	return &MemorySink{Limit: limit, Records: [][]string{}}
}

// WriteHeader stores the header
func (s *MemorySink) WriteHeader(fields []string) error {
	s.Header = append([]string(nil), fields...)
	return nil
}

// WriteRecord stores the record while under the limit
func (s *MemorySink) WriteRecord(fields []string) error {
	s.Total++
	if s.Limit > 0 && len(s.Records) >= s.Limit {
		return nil
	}
	s.Records = append(s.Records, append([]string(nil), fields...))
	return nil
}

// Truncated reports whether records were dropped
func (s *MemorySink) Truncated() bool {
	return s.Total > len(s.Records)
}

// RecordSink is the contract every sink in this package satisfies
type RecordSink interface {
	WriteHeader(fields []string) error
	WriteRecord(fields []string) error
}

// TeeSink forwards every call to each sink in order, stopping at the
// first failure.
type TeeSink struct {
	sinks []RecordSink
}

// Tee combines sinks
func Tee(sinks ...RecordSink) *TeeSink {
	return &TeeSink{sinks: sinks}
}

// WriteHeader forwards the header
func (t *TeeSink) WriteHeader(fields []string) error {
	for _, s := range t.sinks {
		if err := s.WriteHeader(fields); err != nil {
			return err
		}
	}
	return nil
}

// WriteRecord forwards a record
func (t *TeeSink) WriteRecord(fields []string) error {
	for _, s := range t.sinks {
		if err := s.WriteRecord(fields); err != nil {
			return err
		}
	}
	return nil
}
