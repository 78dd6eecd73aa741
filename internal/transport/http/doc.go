// Package http exposes aggregation over HTTP.
//
// Routes:
//
//	GET  /api/health      process and dependency health
//	GET  /api/version     build information
//	GET  /api/documents   workbooks an aggregation of ?dir= would read
//	POST /api/aggregate   run an aggregation and return its report
//	GET  /metrics         Prometheus metrics
//	GET  /ws/runs         websocket stream of run progress events
//
// Handlers stay thin: they decode and validate the request, call a
// service and render the result. Failures are rendered as RFC 7807
// problem bodies by the shared error handler.
package http
