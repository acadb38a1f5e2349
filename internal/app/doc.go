// Package app provides initialization and lifecycle management for the
// vidgate license authority server.
//
// # Architecture
//
// All components are wired together at startup by NewApplication:
//
//	1. Open the configured license store and wrap it with telemetry
//	2. Build the session token issuer (unsigned or signed)
//	3. Create the license authority over the store and issuer
//	4. Set up HTTP handlers and middleware
//	5. Create the HTTP server
//
// Configuration, logging and OpenTelemetry are built by the caller and
// passed in, so tests can substitute in-memory versions.
//
// # Routes
//
//	POST /api/license/validate       activate or validate, meters one use
//	POST /api/license/check-session  strict check, never activates or meters
//	GET  /api/health                 liveness
//	GET  /api/health/ready           license store round trip
//	GET  /api/version                build information
//	GET  /engine/*                   engine files, session cookie required
//	GET  /metrics                    Prometheus exposition
//
// # Usage
//
//	application, err := app.NewApplication(ctx, cfg, logger, providers)
//	if err != nil {
//	    return err
//	}
//	return application.Run(ctx)
//
// # Graceful Shutdown
//
// Run handles SIGINT and SIGTERM. On shutdown in-flight requests are
// completed, the license store is closed and telemetry is flushed.
package app
