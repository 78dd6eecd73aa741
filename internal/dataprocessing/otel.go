package dataprocessing

import (
	"context"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"drillagg/internal/infrastructure"
	"drillagg/pkg/contracts/domain"
)

const TracerName = "drillagg.aggregate"

// noopSpan is handed out by a nil RunTracer so callers can always End it
var noopSpan = trace.SpanFromContext(context.Background())

// RunTracer instruments aggregation runs. A nil *RunTracer is valid and
// records nothing.
type RunTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.AggregationMetrics
}

// NewRunTracer creates a tracer recording on the given providers
func NewRunTracer(providers *infrastructure.OTelProviders) (*RunTracer, error) {
	meter := otel.Meter(infrastructure.MeterName)
	if providers != nil && providers.Meter != nil {
		meter = providers.Meter
	}

	metrics, err := infrastructure.CreateAggregationMetrics(meter)
	if err != nil {
		return nil, err
	}

	return &RunTracer{
		tracer:  otel.Tracer(TracerName),
		metrics: metrics,
	}, nil
}

// StartRun opens the span covering a whole run
func (rt *RunTracer) StartRun(ctx context.Context, runID, inputDir string) (context.Context, trace.Span) {
	if rt == nil {
		return ctx, noopSpan
	}

	ctx, span := rt.tracer.Start(ctx, "aggregate.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("run.input_dir", inputDir),
		),
	)
	rt.metrics.RunsTotal.Add(ctx, 1)
	return ctx, span
}

// EndRun records the outcome of a run and ends its span
func (rt *RunTracer) EndRun(ctx context.Context, span trace.Span, report *domain.RunReport, err error) {
	if rt == nil {
		return
	}
	defer span.End()

	status := "success"
	if err != nil {
		status = "failure"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		rt.metrics.RunErrors.Add(ctx, 1)
	}

	span.SetAttributes(
		attribute.Int("run.documents", len(report.Documents)),
		attribute.Int("run.skipped", len(report.Skipped)),
		attribute.Int("run.records", report.RecordsWritten),
	)
	rt.metrics.RunDuration.Record(ctx, report.Duration().Seconds(),
		metric.WithAttributes(attribute.String("status", status)))
}

// StartDocument opens a span for decoding and scanning one document
func (rt *RunTracer) StartDocument(ctx context.Context, ref domain.DocumentRef) (context.Context, trace.Span) {
	if rt == nil {
		return ctx, noopSpan
	}
	return rt.tracer.Start(ctx, "aggregate.document",
		trace.WithAttributes(attribute.String("document.name", filepath.Base(ref.Path))))
}

// RecordDocument counts a processed document and its records
func (rt *RunTracer) RecordDocument(ctx context.Context, records int) {
	if rt == nil {
		return
	}
	rt.metrics.DocumentsProcessed.Add(ctx, 1)
	rt.metrics.RecordsEmitted.Add(ctx, int64(records))
}

// RecordSkipped counts a document skipped after a decode failure
func (rt *RunTracer) RecordSkipped(ctx context.Context) {
	if rt == nil {
		return
	}
	rt.metrics.DocumentsSkipped.Add(ctx, 1)
}
