package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"drillagg/internal/config"
	"drillagg/internal/dataprocessing"
	apperrors "drillagg/internal/errors"
	"drillagg/internal/exporter"
	"drillagg/internal/files"
	"drillagg/internal/infrastructure"
	"drillagg/internal/storage"
	"drillagg/internal/workbook"
	"drillagg/pkg/contracts/domain"
)

// AggregateRequest overrides the configured aggregation settings for one
// run. Zero values keep the configured value.
type AggregateRequest struct {
	InputDir    string
	OutputFile  string
	Format      string
	BOM         *bool
	Strict      *bool
	RemarksMode string
	Workers     int
	// Sheet selects the worksheet instead of the configured one
	Sheet string
	// DBTable also loads the records into this PostgreSQL table
	DBTable    string
	DBTruncate bool
	// PreviewLimit caps the records kept in memory when no output file
	// is written. Zero keeps every record.
	PreviewLimit int
}

// Preview holds records kept in memory for runs without an output file
type Preview struct {
	Header    []string   `json:"header"`
	Records   [][]string `json:"records"`
	Total     int        `json:"total"`
	Truncated bool       `json:"truncated"`
}

// AggregateResult is the outcome of a run
type AggregateResult struct {
	Report     *domain.RunReport `json:"report"`
	OutputFile string            `json:"output_file,omitempty"`
	DBTable    string            `json:"db_table,omitempty"`
	DBLoaded   int64             `json:"db_loaded,omitempty"`
	Preview    *Preview          `json:"preview,omitempty"`
}

// AggregateService runs aggregations from configuration plus per-run overrides
type AggregateService struct {
	cfg       config.AggregateConfig
	dbTable   string
	db        storage.DB
	root      *files.Root
	events    dataprocessing.EventPublisher
	tracer    *dataprocessing.RunTracer
	statePath string
	logger    *slog.Logger
}

// AggregateOption customises an AggregateService
type AggregateOption func(*AggregateService)

// WithDatabase enables the PostgreSQL sink. defaultTable is used when a
// request does not name a table; empty means only explicit requests load.
func WithDatabase(db storage.DB, defaultTable string) AggregateOption {
	return func(s *AggregateService) {
		s.db = db
		s.dbTable = defaultTable
	}
}

// WithRoot confines input and output paths to a directory
func WithRoot(root *files.Root) AggregateOption {
	return func(s *AggregateService) { s.root = root }
}

// WithEvents publishes run progress
func WithEvents(p dataprocessing.EventPublisher) AggregateOption {
	return func(s *AggregateService) { s.events = p }
}

// WithTracer records run telemetry
func WithTracer(t *dataprocessing.RunTracer) AggregateOption {
	return func(s *AggregateService) { s.tracer = t }
}

// WithStatePath records the last successful run in a state file
func WithStatePath(path string) AggregateOption {
	return func(s *AggregateService) { s.statePath = path }
}

// NewAggregateService creates the service
func NewAggregateService(cfg config.AggregateConfig, logger *slog.Logger, opts ...AggregateOption) *AggregateService {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	s := &AggregateService{
		cfg:    cfg,
		root:   files.NewRoot(""),
		logger: logger.With(slog.String("service", "aggregate")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListDocuments lists the workbooks an aggregation of dir would read
func (s *AggregateService) ListDocuments(ctx context.Context, dir string) ([]domain.DocumentRef, error) {
	resolved, err := s.resolveInput(dir)
	if err != nil {
		return nil, err
	}

	refs, err := s.lister().List(ctx, resolved)
	if err != nil {
		return nil, apperrors.NewDirectoryError(resolved,
			fmt.Errorf("%w: %w", apperrors.ErrDirectoryUnreadable, err))
	}
	return refs, nil
}

// Run performs one aggregation
func (s *AggregateService) Run(ctx context.Context, req AggregateRequest) (*AggregateResult, error) {
	cfg, err := s.merge(req)
	if err != nil {
		return nil, err
	}

	inputDir, err := s.resolveInput(cfg.InputDir)
	if err != nil {
		return nil, err
	}

	ctx = infrastructure.EnsureTraceID(ctx)
	runID := infrastructure.GetTraceID(ctx)
	result := &AggregateResult{}

	var (
		sinks    []exporter.RecordSink
		fileSink *exporter.FileSink
		memory   *exporter.MemorySink
		pgSink   *storage.PostgresSink
	)

	if cfg.OutputFile != "" {
		path, err := s.resolveOutput(cfg.OutputFile)
		if err != nil {
			return nil, err
		}
		format, err := exporter.ParseFormat(cfg.Format)
		if err != nil {
			return nil, apperrors.NewAppValidationError(err.Error())
		}
		fileSink, err = exporter.OpenFileSink(path, exporter.FileOptions{
			Format: format,
			BOM:    cfg.BOM,
			Logger: s.logger,
		})
		if err != nil {
			return nil, apperrors.NewSinkError("failed to open output file",
				fmt.Errorf("%w: %w", apperrors.ErrSinkWrite, err)).WithContext("path", path)
		}
		sinks = append(sinks, fileSink)
		result.OutputFile = path
	} else {
		memory = exporter.NewMemorySink(req.PreviewLimit)
		sinks = append(sinks, memory)
	}

	table := req.DBTable
	if table == "" {
		table = s.dbTable
	}
	if table != "" {
		if s.db == nil {
			closeQuietly(fileSink)
			return nil, apperrors.NewAppValidationError(ErrDatabaseDisabled.Error())
		}
		pgSink, err = storage.NewPostgresSink(ctx, s.db, storage.PostgresOptions{
			Table:    table,
			RunID:    runID,
			Truncate: req.DBTruncate,
		}, s.logger)
		if err != nil {
			closeQuietly(fileSink)
			return nil, err
		}
		sinks = append(sinks, pgSink)
		result.DBTable = table
	}

	var sink dataprocessing.Sink = sinks[0]
	if len(sinks) > 1 {
		sink = exporter.Tee(sinks...)
	}

	aggregator, err := s.aggregator(cfg)
	if err != nil {
		closeQuietly(fileSink)
		return nil, err
	}

	report, runErr := aggregator.Run(ctx, inputDir, sink)
	result.Report = report

	if pgSink != nil {
		if runErr == nil {
			if err := pgSink.Close(); err != nil {
				runErr = apperrors.NewSinkError("failed to load records",
					fmt.Errorf("%w: %w", apperrors.ErrSinkWrite, err))
			}
		}
		result.DBLoaded = pgSink.Loaded()
	}
	if fileSink != nil {
		if err := fileSink.Close(); err != nil && runErr == nil {
			runErr = apperrors.NewSinkError("failed to close output file",
				fmt.Errorf("%w: %w", apperrors.ErrSinkWrite, err))
		}
	}
	if memory != nil {
		result.Preview = &Preview{
			Header:    memory.Header,
			Records:   memory.Records,
			Total:     memory.Total,
			Truncated: memory.Truncated(),
		}
	}

	if runErr != nil {
		infrastructure.RecordError(ctx, runErr)
		s.logger.ErrorContext(ctx, "Aggregation failed",
			slog.String("input_dir", inputDir),
			slog.String("error", runErr.Error()))
		return result, runErr
	}

	s.saveState(ctx, report, result.OutputFile)
	return result, nil
}

// merge applies request overrides to the configured settings
func (s *AggregateService) merge(req AggregateRequest) (config.AggregateConfig, error) {
	cfg := s.cfg
	if req.InputDir != "" {
		cfg.InputDir = req.InputDir
	}
	if req.OutputFile != "" {
		cfg.OutputFile = req.OutputFile
	}
	if req.Format != "" {
		cfg.Format = req.Format
	}
	if req.BOM != nil {
		cfg.BOM = *req.BOM
	}
	if req.Strict != nil {
		cfg.Strict = *req.Strict
	}
	if req.RemarksMode != "" {
		cfg.RemarksMode = req.RemarksMode
	}
	if req.Workers > 0 {
		cfg.Workers = req.Workers
	}
	if req.Sheet != "" {
		cfg.Sheet = req.Sheet
	}

	if cfg.InputDir == "" {
		return cfg, apperrors.NewAppValidationError(ErrInputDirRequired.Error())
	}
	switch dataprocessing.RemarksMode(cfg.RemarksMode) {
	case "", dataprocessing.RemarksMarkerOnly, dataprocessing.RemarksSuppressTrailing:
	default:
		return cfg, apperrors.NewAppValidationError("unsupported remarks mode: " + cfg.RemarksMode)
	}
	return cfg, nil
}

func (s *AggregateService) aggregator(cfg config.AggregateConfig) (*dataprocessing.Aggregator, error) {
	row, col, err := cfg.ProvenanceCoordinates()
	if err != nil {
		return nil, apperrors.NewConfigError("invalid provenance cell", err)
	}

	opts := dataprocessing.AggregatorOptions{
		Locator: dataprocessing.LocatorOptions{
			Sentinels: dataprocessing.Sentinels{
				DataStart:    cfg.DataStartID,
				DataEnd:      cfg.DataEndID,
				RemarksStart: cfg.RemarksStartID,
			},
			Remarks:         dataprocessing.RemarksMode(cfg.RemarksMode),
			ProvenanceField: cfg.ProvenanceField,
		},
		ProvenanceRow: row,
		ProvenanceCol: col,
		Strict:        cfg.Strict,
		Workers:       cfg.Workers,
	}

	decoder := workbook.NewDecoder(workbook.Options{
		Sheet:               cfg.Sheet,
		FirstSheetFallback:  cfg.FirstSheetFallback,
		AbsoluteCoordinates: cfg.AbsoluteCoordinates,
	}, s.logger)
	return dataprocessing.NewAggregator(s.listerFor(cfg), decoder, opts, s.logger).
		WithEvents(s.events).
		WithTracer(s.tracer), nil
}

func (s *AggregateService) lister() *files.Lister {
	return s.listerFor(s.cfg)
}

func (s *AggregateService) listerFor(cfg config.AggregateConfig) *files.Lister {
	return files.NewLister(files.ListerOptions{
		Extensions:    cfg.Extensions,
		Order:         files.Order(cfg.Order),
		VerifyContent: cfg.VerifyContent,
	}, s.logger)
}

func (s *AggregateService) resolveInput(dir string) (string, error) {
	if dir == "" {
		dir = s.cfg.InputDir
	}
	if dir == "" {
		return "", apperrors.NewAppValidationError(ErrInputDirRequired.Error())
	}
	resolved, err := s.root.Resolve(dir)
	if err != nil {
		return "", apperrors.NewAppValidationError(err.Error())
	}
	return resolved, nil
}

func (s *AggregateService) resolveOutput(path string) (string, error) {
	resolved, err := s.root.Resolve(path)
	if err != nil {
		return "", apperrors.NewAppValidationError(err.Error())
	}
	return resolved, nil
}

func (s *AggregateService) saveState(ctx context.Context, report *domain.RunReport, output string) {
	if s.statePath == "" || report == nil {
		return
	}

	st, err := config.LoadState(s.statePath)
	if err != nil {
		st = &config.State{}
	}
	finished := report.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	st.LastRun = &config.LastRun{
		RunID:      report.RunID,
		InputDir:   report.InputDir,
		OutputFile: output,
		Records:    report.RecordsWritten,
		Documents:  len(report.Documents),
		Skipped:    len(report.Skipped),
		FinishedAt: finished,
	}
	if err := config.SaveState(s.statePath, st); err != nil {
		s.logger.WarnContext(ctx, "Failed to save run state",
			slog.String("path", s.statePath),
			slog.String("error", err.Error()))
	}
}

func closeQuietly(f *exporter.FileSink) {
	if f != nil {
		_ = f.Close()
	}
}
