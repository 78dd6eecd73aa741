package exporter

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"

	"drillagg/internal/files"
	"drillagg/internal/infrastructure"
)

// FileOptions configures OpenFileSink
type FileOptions struct {
	Format Format
	// BOM prefixes CSV output with a UTF-8 byte order mark
	BOM bool
	// Logger defaults to the application logger
	Logger *slog.Logger
}

// FileSink writes records to a file through a buffered writer
type FileSink struct {
	RecordSink
	path string
	file *os.File
	buf  *bufio.Writer
}

// OpenFileSink creates or truncates path and returns a sink writing to it.
// Missing parent directories are created.
func OpenFileSink(path string, opts FileOptions) (*FileSink, error) {
	if err := files.EnsureParent(path); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	buf := bufio.NewWriter(file)
	var inner RecordSink
	switch opts.Format {
	case FormatCSV:
		inner = NewCSVSink(buf, opts.BOM)
	case FormatLines, "":
		inner = NewLineSink(buf)
	default:
		file.Close()
		return nil, fmt.Errorf("unsupported output format: %s", opts.Format)
	}

	logger := opts.Logger
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger.With(slog.String("component", "exporter")).Debug("Output file opened",
		slog.String("path", path),
		slog.String("format", string(opts.Format)))

	return &FileSink{
		RecordSink: inner,
		path:       path,
		file:       file,
		buf:        buf,
	}, nil
}

// Path returns the file being written
func (s *FileSink) Path() string {
	return s.path
}

// Close flushes buffered output and closes the file
func (s *FileSink) Close() error {
	if err := s.buf.Flush(); err != nil {
		s.file.Close()
		return fmt.Errorf("failed to flush %s: %w", s.path, err)
	}
	return s.file.Close()
}
