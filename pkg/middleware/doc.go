// Package middleware provides observability middleware for authfront.
//
// Available middleware:
//   - RequestID: assigns a request ID and a request-scoped slog logger
//   - AccessLog: logs one line per request
//   - OpenTelemetry: distributed tracing with OpenTelemetry
//   - Metrics.Handler: Prometheus HTTP metrics
//
// Metrics also observes the request gate and backend calls:
//
//	m := middleware.NewMetrics(middleware.WithNamespace("authfront"))
//	gate := sessionauth.New(client, sessionauth.WithDecisionHook(m.ObserveGate))
//	client, _ := backend.New(url, backend.WithObserver(m.ObserveBackend))
//
//	r := chi.NewRouter()
//	r.Use(middleware.RequestID(logger), middleware.OpenTelemetry(), m.Handler, gate.Middleware())
package middleware
