package services

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drillagg/internal/config"
	apperrors "drillagg/internal/errors"
	"drillagg/internal/files"
	"drillagg/internal/workbook/workbooktest"
	"drillagg/pkg/contracts/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// holeLogDir writes the two-document hole log fixture
func holeLogDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	header := []any{"Hole Number", "Depth"}
	workbooktest.Write(t, dir, "A.xlsx", "A", workbooktest.HoleLog("2024-01-01", header, []any{"H1", 12.3}))
	workbooktest.Write(t, dir, "B.xlsx", "B", workbooktest.HoleLog("2024-01-02", header, []any{"H2", 9.8}))
	return dir
}

type fakeDB struct {
	execs []string
	rows  [][]any
}

func (f *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return pgconn.CommandTag{}, nil
}

func (f *fakeDB) CopyFrom(_ context.Context, _ pgx.Identifier, _ []string, src pgx.CopyFromSource) (int64, error) {
	var n int64
	for src.Next() {
		values, err := src.Values()
		if err != nil {
			return n, err
		}
		f.rows = append(f.rows, values)
		n++
	}
	return n, nil
}

type recordingPublisher struct {
	events []domain.RunEvent
}

func (p *recordingPublisher) Publish(e domain.RunEvent) {
	p.events = append(p.events, e)
}

func TestAggregateServiceWritesOutputFile(t *testing.T) {
	dir := holeLogDir(t)
	out := filepath.Join(t.TempDir(), "out", "combined.csv")
	statePath := filepath.Join(t.TempDir(), "state.yaml")
	events := &recordingPublisher{}

	svc := NewAggregateService(config.Default().Aggregate, testLogger(),
		WithEvents(events),
		WithStatePath(statePath))

	result, err := svc.Run(context.Background(), AggregateRequest{InputDir: dir, OutputFile: out})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "hole_number,depth,date\nH1,12.3,2024-01-01\nH2,9.8,2024-01-02\n", string(data))

	assert.Equal(t, out, result.OutputFile)
	assert.Nil(t, result.Preview)
	assert.Equal(t, 2, result.Report.RecordsWritten)
	assert.Equal(t, domain.EventRunStarted, events.events[0].Type)
	assert.Equal(t, domain.EventRunCompleted, events.events[len(events.events)-1].Type)

	st, err := config.LoadState(statePath)
	require.NoError(t, err)
	require.NotNil(t, st.LastRun)
	assert.Equal(t, dir, st.LastRun.InputDir)
	assert.Equal(t, out, st.LastRun.OutputFile)
	assert.Equal(t, 2, st.LastRun.Records)
}

func TestAggregateServicePreview(t *testing.T) {
	svc := NewAggregateService(config.Default().Aggregate, testLogger())

	result, err := svc.Run(context.Background(), AggregateRequest{InputDir: holeLogDir(t), PreviewLimit: 1})
	require.NoError(t, err)
	require.NotNil(t, result.Preview)

	assert.Equal(t, []string{"hole_number", "depth", "date"}, result.Preview.Header)
	assert.Equal(t, [][]string{{"H1", "12.3", "2024-01-01"}}, result.Preview.Records)
	assert.Equal(t, 2, result.Preview.Total)
	assert.True(t, result.Preview.Truncated)
}

func TestAggregateServiceLoadsDatabase(t *testing.T) {
	db := &fakeDB{}
	svc := NewAggregateService(config.Default().Aggregate, testLogger(), WithDatabase(db, ""))

	result, err := svc.Run(context.Background(), AggregateRequest{InputDir: holeLogDir(t), DBTable: "holes"})
	require.NoError(t, err)

	assert.Equal(t, "holes", result.DBTable)
	assert.Equal(t, int64(2), result.DBLoaded)
	require.Len(t, db.rows, 2)
	assert.Equal(t, result.Report.RunID, db.rows[0][0])
	assert.Equal(t, []any{result.Report.RunID, "H2", "9.8", "2024-01-02"}, db.rows[1])
	require.NotNil(t, result.Preview)
	assert.Equal(t, 2, result.Preview.Total)
}

func TestAggregateServiceRejectsRequests(t *testing.T) {
	dir := holeLogDir(t)

	tests := []struct {
		name string
		opts []AggregateOption
		req  AggregateRequest
	}{
		{name: "no input dir", req: AggregateRequest{}},
		{name: "unknown remarks mode", req: AggregateRequest{InputDir: dir, RemarksMode: "sometimes"}},
		{name: "bad format", req: AggregateRequest{InputDir: dir, OutputFile: filepath.Join(t.TempDir(), "o"), Format: "xml"}},
		{name: "database not configured", req: AggregateRequest{InputDir: dir, DBTable: "holes"}},
		{name: "outside root", opts: []AggregateOption{WithRoot(files.NewRoot(dir))}, req: AggregateRequest{InputDir: "../elsewhere"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewAggregateService(config.Default().Aggregate, testLogger(), tt.opts...)
			_, err := svc.Run(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation), "got %v", err)
		})
	}
}

func TestAggregateServiceStrictOverride(t *testing.T) {
	dir := holeLogDir(t)
	workbooktest.Write(t, dir, "C.xlsx", "C", workbooktest.HoleLog("2024-01-03",
		[]any{"Hole Number", "Depth", "Bit"}, []any{"H3", 4.5, "PDC"}))

	svc := NewAggregateService(config.Default().Aggregate, testLogger())

	lenient, err := svc.Run(context.Background(), AggregateRequest{InputDir: dir})
	require.NoError(t, err)
	assert.Equal(t, 3, lenient.Report.RecordsWritten)
	assert.True(t, lenient.Report.Documents[2].SchemaMismatch)

	strict := true
	_, err = svc.Run(context.Background(), AggregateRequest{InputDir: dir, Strict: &strict})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrSchemaMismatch)
}

func TestAggregateServiceSheetOverride(t *testing.T) {
	dir := t.TempDir()
	header := []any{"Hole Number", "Depth"}
	workbooktest.Write(t, dir, "A.xlsx", "Log", workbooktest.HoleLog("2024-01-01", header, []any{"H1", 12.3}))
	workbooktest.Write(t, dir, "B.xlsx", "Log", workbooktest.HoleLog("2024-01-02", header, []any{"H2", 9.8}))

	svc := NewAggregateService(config.Default().Aggregate, testLogger())

	labelled, err := svc.Run(context.Background(), AggregateRequest{InputDir: dir})
	require.NoError(t, err)
	assert.Zero(t, labelled.Report.RecordsWritten)
	assert.Len(t, labelled.Report.Skipped, 2)

	named, err := svc.Run(context.Background(), AggregateRequest{InputDir: dir, Sheet: "Log"})
	require.NoError(t, err)
	assert.Equal(t, 2, named.Report.RecordsWritten)
	assert.Empty(t, named.Report.Skipped)

	cfg := config.Default().Aggregate
	cfg.FirstSheetFallback = true
	fallback, err := NewAggregateService(cfg, testLogger()).Run(context.Background(), AggregateRequest{InputDir: dir})
	require.NoError(t, err)
	assert.Equal(t, 2, fallback.Report.RecordsWritten)
}

func TestAggregateServiceListDocuments(t *testing.T) {
	dir := holeLogDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	svc := NewAggregateService(config.Default().Aggregate, testLogger(), WithRoot(files.NewRoot(dir)))

	refs, err := svc.ListDocuments(context.Background(), ".")
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "A", refs[0].Label())
	assert.Equal(t, "B", refs[1].Label())

	_, err = svc.ListDocuments(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrDirectoryUnreadable)
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubCounter int

func (c stubCounter) ClientCount() int { return int(c) }

func TestHealthService(t *testing.T) {
	hs := NewHealthService(stubCounter(3), stubPinger{}, testLogger())
	status := hs.HealthCheck(context.Background())
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, 3, status.Runtime["websocket_clients"])
	assert.NotEmpty(t, status.Runtime["go_version"])
	assert.Equal(t, "healthy", status.Services["database"].Status)

	hs = NewHealthService(nil, stubPinger{err: assert.AnError}, testLogger())
	status = hs.HealthCheck(context.Background())
	assert.Equal(t, "degraded", status.Status)
	assert.Equal(t, "unhealthy", status.Services["database"].Status)
}
