// Package app assembles the HTTP service: telemetry, the websocket hub,
// the optional PostgreSQL pool, the services and the router, and runs
// them until interrupted.
package app
