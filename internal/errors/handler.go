package errors

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger *slog.Logger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger.With(slog.String("component", "error_handler")),
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := middleware.GetReqID(r.Context())

	h.logger.ErrorContext(r.Context(), "request failed",
		slog.String("error", err.Error()),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	problem := ErrorToProblem(err, r.URL.Path)
	if reqID != "" {
		problem.WithExtension("trace_id", reqID)
	}

	render.Render(w, r, problem)
}

// ErrorToProblem maps an error chain onto a problem body
func ErrorToProblem(err error, instance string) *ProblemDetails {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(http.StatusGatewayTimeout, TypeTimeout,
			"Request Timeout", "The request was cancelled before the run completed", instance)
	}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		return NewProblemDetails(http.StatusInternalServerError, TypeInternal,
			"Internal Server Error", "An unexpected error occurred", instance)
	}

	var pd *ProblemDetails
	switch appErr.Type {
	case ErrTypeValidation, ErrTypeConfig:
		pd = NewProblemDetails(http.StatusBadRequest, TypeValidation,
			"Validation Failed", appErr.Message, instance)
	case ErrTypeNotFound:
		pd = NewProblemDetails(http.StatusNotFound, TypeNotFound,
			"Resource Not Found", appErr.Message, instance)
	case ErrTypeDirectory:
		pd = NewProblemDetails(http.StatusUnprocessableEntity, TypeDirectory,
			"Input Directory Unreadable", appErr.Error(), instance)
	case ErrTypeSchema:
		pd = NewProblemDetails(http.StatusUnprocessableEntity, TypeSchemaMismatch,
			"Schema Mismatch", appErr.Message, instance)
	case ErrTypeSink:
		pd = NewProblemDetails(http.StatusInternalServerError, TypeSinkWrite,
			"Output Write Failed", appErr.Error(), instance)
	case ErrTypeStorage:
		pd = NewProblemDetails(http.StatusInternalServerError, TypeStorage,
			"Storage Failure", appErr.Message, instance)
	default:
		pd = NewProblemDetails(http.StatusInternalServerError, TypeInternal,
			"Internal Server Error", appErr.Message, instance)
	}

	for k, v := range appErr.Context {
		pd.WithExtension(k, v)
	}
	return pd
}
