package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"drillagg/internal/config"
	"drillagg/internal/dataprocessing"
	"drillagg/internal/files"
	"drillagg/internal/infrastructure"
	"drillagg/internal/services"
	"drillagg/internal/storage"
	handlers "drillagg/internal/transport/http"
	ws "drillagg/internal/websocket"
)

// Application represents the HTTP service container
type Application struct {
	Config           *config.Config
	Logger           *slog.Logger
	OTelProviders    *infrastructure.OTelProviders
	WebSocketHub     *ws.Hub
	DB               *pgxpool.Pool
	AggregateService *services.AggregateService
	HealthService    *services.HealthService
	Server           *http.Server

	listener net.Listener
	serveErr chan error
}

// NewApplication wires every service from cfg
func NewApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	a := &Application{
		Config:   cfg,
		Logger:   logger,
		serveErr: make(chan error, 1),
	}

	providers, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.OTelProviders = providers

	tracer, err := dataprocessing.NewRunTracer(providers)
	if err != nil {
		return nil, fmt.Errorf("failed to create run metrics: %w", err)
	}

	a.WebSocketHub = ws.NewHub(logger)

	opts := []services.AggregateOption{
		services.WithRoot(files.NewRoot(cfg.Server.DataRoot)),
		services.WithEvents(a.WebSocketHub),
		services.WithTracer(tracer),
	}

	var pinger services.Pinger
	if cfg.Database.Enabled() {
		pool, err := storage.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return nil, err
		}
		a.DB = pool
		pinger = pool
		// Requests choose a table explicitly; the configured one is the CLI default
		opts = append(opts, services.WithDatabase(pool, ""))
	}

	a.AggregateService = services.NewAggregateService(cfg.Aggregate, logger, opts...)
	a.HealthService = services.NewHealthService(a.WebSocketHub, pinger, logger)

	router := handlers.NewRouter(handlers.RouterDeps{
		Aggregate: a.AggregateService,
		Health:    a.HealthService,
		Hub:       a.WebSocketHub,
		Metrics:   providers.PrometheusHTTP,
		RateLimit: cfg.Server.RateLimit,
		Logger:    logger,
	})

	a.Server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return a, nil
}

// Start begins serving in the background
func (a *Application) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	a.listener = listener

	a.WebSocketHub.Start()

	go func() {
		if err := a.Server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.serveErr <- err
		}
		close(a.serveErr)
	}()

	a.Logger.InfoContext(ctx, "Server started",
		slog.String("addr", listener.Addr().String()),
		slog.String("data_root", a.Config.Server.DataRoot))
	if a.Config.Server.DataRoot == "" {
		a.Logger.WarnContext(ctx, "No data root configured, HTTP clients may read and write any path")
	}
	return nil
}

// Addr is the address the server listens on once started
func (a *Application) Addr() string {
	if a.listener == nil {
		return a.Server.Addr
	}
	return a.listener.Addr().String()
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	a.WebSocketHub.Stop()

	if a.DB != nil {
		a.DB.Close()
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

// Run serves until ctx is cancelled, an interrupt arrives or the server fails
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}

	var serveErr error
	select {
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case serveErr = <-a.serveErr:
	}

	return errors.Join(serveErr, a.Stop(ctx))
}
