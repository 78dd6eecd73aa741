package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	apperrors "drillagg/internal/errors"
	"drillagg/internal/infrastructure"
	"drillagg/pkg/contracts/domain"
)

// Sentinel errors matched with errors.Is on the value returned by Run
var (
	ErrDirectoryUnreadable = apperrors.ErrDirectoryUnreadable
	ErrDocumentDecode      = apperrors.ErrDocumentDecode
	ErrSinkWrite           = apperrors.ErrSinkWrite
	ErrSchemaMismatch      = apperrors.ErrSchemaMismatch
)

// DocumentLister enumerates the spreadsheet documents of a directory
type DocumentLister interface {
	List(ctx context.Context, dir string) ([]domain.DocumentRef, error)
}

// DocumentDecoder turns one document into its row view
type DocumentDecoder interface {
	Decode(ctx context.Context, ref domain.DocumentRef) (*domain.Document, error)
}

// Sink receives the header once and then every record
type Sink interface {
	WriteHeader(fields []string) error
	WriteRecord(fields []string) error
}

// EventPublisher receives progress events during a run
type EventPublisher interface {
	Publish(event domain.RunEvent)
}

// AggregatorOptions configures an Aggregator
type AggregatorOptions struct {
	Locator LocatorOptions
	// ProvenanceRow and ProvenanceCol address the cell whose text is
	// appended to every record of a document.
	ProvenanceRow int
	ProvenanceCol int
	// Strict fails the run when a document's width differs from the
	// header instead of emitting its rows positionally.
	Strict bool
	// Workers > 1 decodes and scans documents concurrently. Emission
	// stays in enumeration order.
	Workers int
}

// DefaultAggregatorOptions returns the hole log defaults
func DefaultAggregatorOptions() AggregatorOptions {
	return AggregatorOptions{
		Locator:       DefaultLocatorOptions(),
		ProvenanceRow: 1,
		ProvenanceCol: 0,
		Workers:       1,
	}
}

// Aggregator drives the Locator over every document of a directory and
// writes one combined record stream.
type Aggregator struct {
	lister  DocumentLister
	decoder DocumentDecoder
	opts    AggregatorOptions
	logger  *slog.Logger
	events  EventPublisher
	tracer  *RunTracer
}

// NewAggregator creates an aggregator
func NewAggregator(lister DocumentLister, decoder DocumentDecoder, opts AggregatorOptions, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	opts.Locator = opts.Locator.withDefaults()

	return &Aggregator{
		lister:  lister,
		decoder: decoder,
		opts:    opts,
		logger:  logger.With(slog.String("component", "aggregator")),
	}
}

// WithEvents attaches a publisher for progress events
func (a *Aggregator) WithEvents(p EventPublisher) *Aggregator {
	a.events = p
	return a
}

// WithTracer attaches telemetry
func (a *Aggregator) WithTracer(t *RunTracer) *Aggregator {
	a.tracer = t
	return a
}

// scannedDocument is one document after decoding and classification.
// The decoded rows are dropped once the scan holds what is needed.
type scannedDocument struct {
	ref        domain.DocumentRef
	provenance string
	scan       *Scan
	err        error
}

// run holds the state of a single Run call
type run struct {
	report *domain.RunReport
	header *HeaderSpec
	sink   Sink
}

// Run aggregates every document in inputDir into sink. Documents that
// cannot be decoded are skipped and listed in the report; an unreadable
// directory or a failing sink ends the run.
func (a *Aggregator) Run(ctx context.Context, inputDir string, sink Sink) (report *domain.RunReport, err error) {
	runID := infrastructure.GetTraceID(ctx)
	if runID == "" {
		runID = uuid.New().String()
		ctx = infrastructure.WithTraceID(ctx, runID)
	}

	r := &run{
		report: &domain.RunReport{
			RunID:     runID,
			InputDir:  inputDir,
			Documents: []domain.DocumentReport{},
			StartedAt: time.Now(),
		},
		sink: sink,
	}
	report = r.report

	ctx, span := a.tracer.StartRun(ctx, runID, inputDir)
	defer func() {
		report.FinishedAt = time.Now()
		a.tracer.EndRun(ctx, span, report, err)
		if err != nil {
			a.publish(domain.RunEvent{Type: domain.EventRunFailed, RunID: runID, Message: err.Error()})
			return
		}
		a.publish(domain.RunEvent{Type: domain.EventRunCompleted, RunID: runID, Records: report.RecordsWritten})
	}()

	logger := a.logger.With(slog.String("run_id", runID))

	refs, err := a.lister.List(ctx, inputDir)
	if err != nil {
		return report, apperrors.NewDirectoryError(inputDir,
			fmt.Errorf("%w: %w", ErrDirectoryUnreadable, err))
	}

	logger.InfoContext(ctx, "Aggregation started",
		slog.String("input_dir", inputDir),
		slog.Int("documents", len(refs)),
		slog.Int("workers", a.opts.Workers))
	a.publish(domain.RunEvent{Type: domain.EventRunStarted, RunID: runID, Message: inputDir})

	if a.opts.Workers > 1 && len(refs) > 1 {
		err = a.runParallel(ctx, r, refs)
	} else {
		err = a.runSequential(ctx, r, refs)
	}
	if err != nil {
		return report, err
	}

	logger.InfoContext(ctx, "Aggregation complete",
		slog.Int("documents", len(report.Documents)),
		slog.Int("skipped", len(report.Skipped)),
		slog.Int("records", report.RecordsWritten),
		slog.Bool("header_found", r.header != nil))

	return report, nil
}

func (a *Aggregator) runSequential(ctx context.Context, r *run, refs []domain.DocumentRef) error {
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("aggregation cancelled: %w", err)
		}
		if err := a.emit(ctx, r, a.scanDocument(ctx, ref)); err != nil {
			return err
		}
	}
	return nil
}

// runParallel scans documents on a bounded worker group and emits them
// in enumeration order, so the first header still wins by position.
func (a *Aggregator) runParallel(ctx context.Context, r *run, refs []domain.DocumentRef) error {
	ctx, cancel := context.WithCancel(ctx)

	slots := make([]chan scannedDocument, len(refs))
	for i := range slots {
		slots[i] = make(chan scannedDocument, 1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)

	launched := make(chan struct{})
	go func() {
		defer close(launched)
		for i, ref := range refs {
			i, ref := i, ref
			g.Go(func() error {
				slots[i] <- a.scanDocument(gctx, ref)
				return nil
			})
		}
	}()

	defer func() {
		cancel()
		<-launched
		_ = g.Wait()
	}()

	for i := range refs {
		var doc scannedDocument
		select {
		case doc = <-slots[i]:
		case <-ctx.Done():
			return fmt.Errorf("aggregation cancelled: %w", ctx.Err())
		}
		if err := a.emit(ctx, r, doc); err != nil {
			return err
		}
	}
	return nil
}

// scanDocument decodes one document and classifies its rows
func (a *Aggregator) scanDocument(ctx context.Context, ref domain.DocumentRef) scannedDocument {
	if err := ctx.Err(); err != nil {
		return scannedDocument{ref: ref, err: err}
	}

	ctx, span := a.tracer.StartDocument(ctx, ref)
	defer span.End()

	doc, err := a.decoder.Decode(ctx, ref)
	if err != nil {
		return scannedDocument{ref: ref, err: err}
	}

	return scannedDocument{
		ref:        ref,
		provenance: doc.CellAt(a.opts.ProvenanceRow, a.opts.ProvenanceCol).DisplayText(),
		scan:       NewLocator(a.opts.Locator).Classify(doc.Rows),
	}
}

// emit applies the header decision and writes one document's records
func (a *Aggregator) emit(ctx context.Context, r *run, doc scannedDocument) error {
	logger := a.logger.With(slog.String("document", doc.ref.Path))

	if doc.err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("aggregation cancelled: %w", ctxErr)
		}
		logger.WarnContext(ctx, "Skipping document that could not be decoded",
			slog.String("error", doc.err.Error()))
		r.report.Skipped = append(r.report.Skipped, domain.SkippedDocument{
			Path:   doc.ref.Path,
			Reason: doc.err.Error(),
		})
		a.tracer.RecordSkipped(ctx)
		a.publish(domain.RunEvent{
			Type:     domain.EventDocumentSkipped,
			RunID:    r.report.RunID,
			Document: doc.ref.Path,
			Message:  doc.err.Error(),
		})
		return nil
	}

	scan := doc.scan
	dr := domain.DocumentReport{
		Path:        doc.ref.Path,
		Label:       doc.ref.Label(),
		Provenance:  doc.provenance,
		HeaderFound: scan.Header != nil,
		HeaderRow:   scan.State.HeaderRow,
		TableEndRow: scan.State.TableEndRow,
		RemarksRow:  scan.State.RemarksRow,
		Width:       scan.HeaderWidth,
	}

	if scan.Header != nil && r.header == nil {
		r.header = newHeaderSpec(scan.Header, doc.ref.Path)
		if err := r.sink.WriteHeader(r.header.Fields()); err != nil {
			return apperrors.NewSinkError("failed to write header", fmt.Errorf("%w: %w", ErrSinkWrite, err))
		}
		r.report.Header = r.header.Fields()
		r.report.HeaderSource = doc.ref.Path
		logger.InfoContext(ctx, "Header established",
			slog.Int("fields", r.header.Width()),
			slog.Int("header_row", scan.State.HeaderRow))
	}

	if r.header != nil && len(scan.Data) > 0 {
		if mismatch := a.widthMismatch(r.header, scan.Data); mismatch > 0 {
			if a.opts.Strict {
				return apperrors.NewSchemaError(doc.ref.Path, r.header.Width(), mismatch, ErrSchemaMismatch)
			}
			dr.SchemaMismatch = true
			logger.WarnContext(ctx, "Document width differs from header, emitting positionally",
				slog.Int("header_fields", r.header.Width()),
				slog.Int("record_fields", mismatch))
		}
	}

	for _, row := range scan.Data {
		record := append(row.DisplayTexts(), doc.provenance)
		if err := r.sink.WriteRecord(record); err != nil {
			return apperrors.NewSinkError("failed to write record", fmt.Errorf("%w: %w", ErrSinkWrite, err)).
				WithContext("path", doc.ref.Path)
		}
		dr.Records++
		r.report.RecordsWritten++
	}

	r.report.Documents = append(r.report.Documents, dr)
	a.tracer.RecordDocument(ctx, dr.Records)
	a.publish(domain.RunEvent{
		Type:     domain.EventDocumentDone,
		RunID:    r.report.RunID,
		Document: doc.ref.Path,
		Records:  dr.Records,
	})

	logger.DebugContext(ctx, "Document processed",
		slog.String("provenance", doc.provenance),
		slog.Int("records", dr.Records),
		slog.Bool("header_found", dr.HeaderFound))

	return nil
}

// widthMismatch returns the record width of the first data row that does
// not fit the header, or 0 when all rows fit.
func (a *Aggregator) widthMismatch(header *HeaderSpec, rows []domain.Row) int {
	for _, row := range rows {
		if got := len(row) + 1; got != header.Width() {
			return got
		}
	}
	return 0
}

func (a *Aggregator) publish(event domain.RunEvent) {
	if a.events == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	a.events.Publish(event)
}
