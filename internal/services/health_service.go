package services

import (
	"context"
	"log/slog"
	"time"

	"drillagg/internal/infrastructure"
	"drillagg/pkg/contracts"
)

// ClientCounter reports connected websocket clients
type ClientCounter interface {
	ClientCount() int
}

// Pinger checks a backing service
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	clients   ClientCounter
	database  Pinger
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Uptime    string                   `json:"uptime"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewHealthService creates a health service. clients and database may be nil.
func NewHealthService(clients ClientCounter, database Pinger, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   contracts.Version,
		clients:   clients,
		database:  database,
		startTime: time.Now(),
		logger:    logger.With(slog.String("service", "health")),
	}
}

// HealthCheck returns overall health status. A failing database marks
// the service as degraded.
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
		Uptime:    time.Since(hs.startTime).Round(time.Second).String(),
		Runtime:   infrastructure.CollectRuntimeStats().FormatStats(),
		Services:  map[string]ServiceHealth{},
	}

	if hs.clients != nil {
		status.Runtime["websocket_clients"] = hs.clients.ClientCount()
	}

	if hs.database != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := hs.database.Ping(pingCtx); err != nil {
			hs.logger.WarnContext(ctx, "Database health check failed", slog.String("error", err.Error()))
			status.Status = "degraded"
			status.Services["database"] = ServiceHealth{Status: "unhealthy", Message: err.Error()}
		} else {
			status.Services["database"] = ServiceHealth{Status: "healthy"}
		}
	}

	return status
}
