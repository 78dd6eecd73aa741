// Package services holds the operations shared by the CLI and the HTTP
// API.
//
// AggregateService turns configuration plus per-request overrides into an
// aggregation run: it resolves paths, opens the file, memory and
// PostgreSQL sinks, runs the aggregator and records the last run in the
// state file.
//
//	svc := services.NewAggregateService(cfg.Aggregate, logger,
//	    services.WithEvents(hub),
//	    services.WithStatePath(statePath))
//	result, err := svc.Run(ctx, services.AggregateRequest{InputDir: dir})
//
// HealthService reports process and dependency health.
package services
