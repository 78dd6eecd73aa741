// Package exporter writes aggregated records to their destination.
//
// This package contains the record sinks:
//
// LineSink: one line per record, fields joined with commas and no quoting,
// matching the plain output consumers of hole logs expect.
//
// CSVSink: RFC 4180 quoting through encoding/csv with an optional UTF-8 BOM
// for Excel compatibility.
//
// FileSink: a truncate-on-open file wrapping either of the above behind a
// buffered writer. Close flushes.
//
// MemorySink and Tee support previews and fan-out to several sinks.
//
// Example usage:
//
//	sink, err := exporter.OpenFileSink("holes.csv", exporter.FileOptions{Format: exporter.FormatLines})
//	if err != nil {
//	    return err
//	}
//	defer sink.Close()
package exporter
