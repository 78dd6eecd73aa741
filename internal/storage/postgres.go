package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "drillagg/internal/errors"
	"drillagg/internal/infrastructure"
)

const (
	// RunIDColumn tags every loaded row with the run that produced it
	RunIDColumn = "run_id"

	DefaultBatchSize = 500
)

// DB is satisfied by both *pgxpool.Pool and pgx.Tx
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

// Connect opens a connection pool and verifies it with a ping
func Connect(ctx context.Context, url string, maxConns int) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to parse database URL", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to connect to database", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, apperrors.NewStorageError("failed to ping database", err)
	}
	return pool, nil
}

// PostgresOptions configures a PostgresSink
type PostgresOptions struct {
	// Table may be schema-qualified ("logs.holes")
	Table     string
	RunID     string
	BatchSize int
	// Truncate empties the table before the first batch
	Truncate bool
}

// PostgresSink writes records into a PostgreSQL table. It is bound to the
// context of the run that created it.
type PostgresSink struct {
	ctx     context.Context
	db      DB
	table   pgx.Identifier
	opts    PostgresOptions
	columns []string
	pending [][]any
	loaded  int64
	logger  *slog.Logger
}

// NewPostgresSink creates a sink; nothing is sent before WriteHeader
func NewPostgresSink(ctx context.Context, db DB, opts PostgresOptions, logger *slog.Logger) (*PostgresSink, error) {
	table, err := ParseTable(opts.Table)
	if err != nil {
		return nil, apperrors.NewStorageError("invalid table name", err)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	return &PostgresSink{
		ctx:    ctx,
		db:     db,
		table:  table,
		opts:   opts,
		logger: logger.With(slog.String("component", "postgres_sink"), slog.String("table", opts.Table)),
	}, nil
}

// WriteHeader creates the table for the header's fields
func (s *PostgresSink) WriteHeader(fields []string) error {
	s.columns = ColumnNames(fields)

	if _, err := s.db.Exec(s.ctx, CreateTableSQL(s.table, s.columns)); err != nil {
		return apperrors.NewStorageError("failed to create table", err)
	}
	if s.opts.Truncate {
		if _, err := s.db.Exec(s.ctx, "TRUNCATE "+s.table.Sanitize()); err != nil {
			return apperrors.NewStorageError("failed to truncate table", err)
		}
	}

	s.logger.DebugContext(s.ctx, "Table ready", slog.Int("columns", len(s.columns)))
	return nil
}

// WriteRecord buffers one record, loading a batch when the buffer is full
func (s *PostgresSink) WriteRecord(fields []string) error {
	if s.columns == nil {
		return apperrors.NewStorageError("record written before header", nil)
	}

	s.pending = append(s.pending, FitRow(s.opts.RunID, fields, len(s.columns)))
	if len(s.pending) >= s.opts.BatchSize {
		return s.Flush()
	}
	return nil
}

// Flush loads every buffered record
func (s *PostgresSink) Flush() error {
	if len(s.pending) == 0 {
		return nil
	}

	columns := append([]string{RunIDColumn}, s.columns...)
	n, err := s.db.CopyFrom(s.ctx, s.table, columns, pgx.CopyFromRows(s.pending))
	if err != nil {
		return apperrors.NewStorageError("failed to copy records", err)
	}

	s.loaded += n
	s.pending = s.pending[:0]
	s.logger.DebugContext(s.ctx, "Batch loaded", slog.Int64("rows", n), slog.Int64("total", s.loaded))
	return nil
}

// Close flushes the remaining records
func (s *PostgresSink) Close() error {
	return s.Flush()
}

// Loaded returns the number of rows copied so far
func (s *PostgresSink) Loaded() int64 {
	return s.loaded
}

// ParseTable splits an optionally schema-qualified table name
func ParseTable(name string) (pgx.Identifier, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("table name is empty")
	}
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("table name %q has too many parts", name)
	}
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("table name %q has an empty part", name)
		}
	}
	return pgx.Identifier(parts), nil
}

// ColumnNames turns header fields into unique column names. Empty fields
// become col_N and repeats get a numeric suffix.
func ColumnNames(fields []string) []string {
	seen := map[string]int{RunIDColumn: 1}
	out := make([]string, len(fields))
	for i, f := range fields {
		name := f
		if name == "" {
			name = "col_" + strconv.Itoa(i+1)
		}
		base := name
		for seen[name] > 0 {
			seen[base]++
			name = base + "_" + strconv.Itoa(seen[base])
		}
		seen[name]++
		out[i] = name
	}
	return out
}

// CreateTableSQL returns the DDL for a text column per field
func CreateTableSQL(table pgx.Identifier, columns []string) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(table.Sanitize())
	b.WriteString(" (")
	b.WriteString(pgx.Identifier{RunIDColumn}.Sanitize())
	b.WriteString(" text NOT NULL")
	for _, c := range columns {
		b.WriteString(", ")
		b.WriteString(pgx.Identifier{c}.Sanitize())
		b.WriteString(" text")
	}
	b.WriteString(")")
	return b.String()
}

// FitRow prefixes the run id and fits fields to width columns. The last
// field is the provenance value and always lands in the last column; the
// cells before it are padded or cut. Empty values load as NULL.
func FitRow(runID string, fields []string, width int) []any {
	row := make([]any, width+1)
	row[0] = runID
	if width == 0 || len(fields) == 0 {
		return row
	}

	set := func(col int, v string) {
		if v != "" {
			row[col+1] = v
		}
	}
	cells := fields[:len(fields)-1]
	for i := 0; i < width-1 && i < len(cells); i++ {
		set(i, cells[i])
	}
	set(width-1, fields[len(fields)-1])
	return row
}
