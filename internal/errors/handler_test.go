package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorToProblem(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{name: "validation", err: NewAppValidationError("input_dir is required"), wantStatus: http.StatusBadRequest, wantType: TypeValidation},
		{name: "not found", err: NewNotFoundError("directory"), wantStatus: http.StatusNotFound, wantType: TypeNotFound},
		{name: "directory", err: NewDirectoryError("/x", ErrDirectoryUnreadable), wantStatus: http.StatusUnprocessableEntity, wantType: TypeDirectory},
		{name: "schema", err: NewSchemaError("b.xlsx", 3, 4, ErrSchemaMismatch), wantStatus: http.StatusUnprocessableEntity, wantType: TypeSchemaMismatch},
		{name: "sink", err: NewSinkError("failed", ErrSinkWrite), wantStatus: http.StatusInternalServerError, wantType: TypeSinkWrite},
		{name: "storage", err: NewStorageError("copy failed", nil), wantStatus: http.StatusInternalServerError, wantType: TypeStorage},
		{name: "deadline", err: fmt.Errorf("aggregation cancelled: %w", context.DeadlineExceeded), wantStatus: http.StatusGatewayTimeout, wantType: TypeTimeout},
		{name: "plain", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantType: TypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pd := ErrorToProblem(tt.err, "/api/aggregate")
			assert.Equal(t, tt.wantStatus, pd.Status)
			assert.Equal(t, tt.wantType, pd.Type)
			assert.Equal(t, "/api/aggregate", pd.Instance)
		})
	}
}

func TestErrorToProblemCopiesContext(t *testing.T) {
	pd := ErrorToProblem(NewSchemaError("b.xlsx", 3, 4, ErrSchemaMismatch), "")
	assert.Equal(t, "b.xlsx", pd.Extensions["path"])
}

func TestErrorHandler_HandleError(t *testing.T) {
	handler := NewErrorHandler(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	var reqID string
	h := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID = middleware.GetReqID(r.Context())
		handler.HandleError(w, r, NewDirectoryError("/missing", ErrDirectoryUnreadable))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/aggregate", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, TypeDirectory, body["type"])
	assert.Equal(t, "/missing", body["dir"])
	assert.Equal(t, reqID, body["trace_id"])
	assert.EqualValues(t, http.StatusUnprocessableEntity, body["status"])
}

func TestErrorHandler_NilError(t *testing.T) {
	handler := NewErrorHandler(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	rec := httptest.NewRecorder()
	handler.HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestProblemDetails_MarshalJSON(t *testing.T) {
	pd := NewProblemDetails(http.StatusBadRequest, TypeValidation, "Validation Failed", "", "").
		WithExtension("errors", []ValidationError{{Field: "format", Message: "invalid"}})

	data, err := json.Marshal(pd)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "Validation Failed", body["title"])
	assert.NotContains(t, body, "detail")
	assert.NotContains(t, body, "instance")
	assert.Len(t, body["errors"], 1)
}
