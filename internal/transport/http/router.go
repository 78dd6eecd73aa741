package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"drillagg/internal/config"
	apperrors "drillagg/internal/errors"
	"drillagg/internal/middleware"
	"drillagg/internal/services"
	ws "drillagg/internal/websocket"
)

// DefaultMaxBodyBytes caps JSON request bodies
const DefaultMaxBodyBytes = 1 << 20

// RouterDeps are the collaborators wired into the router
type RouterDeps struct {
	Aggregate *services.AggregateService
	Health    *services.HealthService
	// Hub is optional; without it /ws/runs is not mounted
	Hub *ws.Hub
	// Metrics is optional; without it /metrics is not mounted
	Metrics      http.Handler
	RateLimit    config.RateLimitConfig
	MaxBodyBytes int64
	CheckOrigin  func(r *http.Request) bool
	Logger       *slog.Logger
}

// NewRouter builds the HTTP handler
func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = DefaultMaxBodyBytes
	}

	errorHandler := apperrors.NewErrorHandler(logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Tracing)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		if deps.RateLimit.Enabled {
			r.Use(middleware.NewRateLimiter(deps.RateLimit.RPS, deps.RateLimit.Burst, logger).Handler)
		}
		r.Use(middleware.MaxBodySize(deps.MaxBodyBytes))

		health := NewHealthHandler(deps.Health, logger)
		r.Get("/health", health.HealthCheck)
		r.Get("/version", health.Version)

		agg := NewAggregateHandler(deps.Aggregate, middleware.NewValidator(), errorHandler, logger)
		r.Get("/documents", agg.ListDocuments)
		r.Post("/aggregate", agg.Aggregate)
	})

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}
	if deps.Hub != nil {
		r.Get("/ws/runs", ws.Handler(deps.Hub, deps.CheckOrigin))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errorHandler.HandleError(w, r, apperrors.NewNotFoundError(r.URL.Path))
	})

	return r
}
