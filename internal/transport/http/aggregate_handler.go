package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	apperrors "drillagg/internal/errors"
	"drillagg/internal/middleware"
	"drillagg/internal/services"
	"drillagg/pkg/contracts/domain"
)

// defaultPreviewLimit caps the records returned when no output file is written
const defaultPreviewLimit = 100

// AggregateRequest is the body of POST /api/aggregate
type AggregateRequest struct {
	InputDir     string `json:"input_dir" validate:"required"`
	OutputFile   string `json:"output_file,omitempty"`
	Format       string `json:"format,omitempty" validate:"omitempty,oneof=lines csv"`
	BOM          *bool  `json:"bom,omitempty"`
	Strict       *bool  `json:"strict,omitempty"`
	RemarksMode  string `json:"remarks_mode,omitempty" validate:"omitempty,oneof=marker-only suppress-trailing"`
	Workers      int    `json:"workers,omitempty" validate:"omitempty,min=1,max=64"`
	Sheet        string `json:"sheet,omitempty" validate:"omitempty,max=31"`
	DBTable      string `json:"db_table,omitempty" validate:"omitempty,max=128"`
	DBTruncate   bool   `json:"db_truncate,omitempty"`
	PreviewLimit int    `json:"preview_limit,omitempty" validate:"omitempty,min=1,max=10000"`
}

// DocumentsResponse is the body of GET /api/documents
type DocumentsResponse struct {
	Dir       string               `json:"dir"`
	Documents []domain.DocumentRef `json:"documents"`
	Count     int                  `json:"count"`
}

// AggregateHandler serves document listings and aggregation runs
type AggregateHandler struct {
	service      *services.AggregateService
	validator    *middleware.Validator
	errorHandler *apperrors.ErrorHandler
	logger       *slog.Logger
}

// NewAggregateHandler creates the handler
func NewAggregateHandler(service *services.AggregateService, validator *middleware.Validator, errorHandler *apperrors.ErrorHandler, logger *slog.Logger) *AggregateHandler {
	return &AggregateHandler{
		service:      service,
		validator:    validator,
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("handler", "aggregate")),
	}
}

// ListDocuments handles GET /api/documents?dir=
func (h *AggregateHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("dir")

	refs, err := h.service.ListDocuments(r.Context(), dir)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, DocumentsResponse{
		Dir:       dir,
		Documents: refs,
		Count:     len(refs),
	})
}

// Aggregate handles POST /api/aggregate
func (h *AggregateHandler) Aggregate(w http.ResponseWriter, r *http.Request) {
	var req AggregateRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	limit := req.PreviewLimit
	if limit == 0 {
		limit = defaultPreviewLimit
	}

	result, err := h.service.Run(r.Context(), services.AggregateRequest{
		InputDir:     req.InputDir,
		OutputFile:   req.OutputFile,
		Format:       req.Format,
		BOM:          req.BOM,
		Strict:       req.Strict,
		RemarksMode:  req.RemarksMode,
		Workers:      req.Workers,
		Sheet:        req.Sheet,
		DBTable:      req.DBTable,
		DBTruncate:   req.DBTruncate,
		PreviewLimit: limit,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Aggregation served",
		slog.String("run_id", result.Report.RunID),
		slog.Int("records", result.Report.RecordsWritten),
		slog.Int("skipped", len(result.Report.Skipped)))

	render.JSON(w, r, result)
}
