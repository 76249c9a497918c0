// Package middleware provides HTTP middleware for the filterd server.
//
// This package includes:
//   - OpenTelemetry request tracing
//   - Prometheus request metrics
//
// Both are plain func(http.Handler) http.Handler values and mount on a chi
// router like any other middleware:
//
//	r := chi.NewRouter()
//	r.Use(middleware.Tracing())
//	r.Use(middleware.Metrics(middleware.WithRegistry(reg)))
//
// # OpenTelemetry
//
// Tracing starts a server span per request named after the matched chi
// route ("GET /ws"), so websocket sessions appear as one long span. Spans
// created further down, such as the per-commit "filter.navigate" spans,
// are children of it. The tracer comes from the global provider; configure
// it in main() before starting the server.
//
// # Prometheus
//
// Metrics records, per route pattern, method and status:
//   - filterd_http_requests_total
//   - filterd_http_request_duration_seconds
//
// Route patterns rather than raw paths are used as labels to keep
// cardinality bounded.
package middleware
