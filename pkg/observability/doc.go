// Package observability provides structured logging, Prometheus metrics,
// and health checks.
//
// # Logging
//
// Logger wraps log/slog with a JSON handler and a chainable field API:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("community_id", id).Info("community created")
//	logger.FromContext(ctx).WithError(err).Error("join failed")
//
// FromContext picks up the request ID and acting user placed in the
// context by pkg/middleware.
//
// # Metrics
//
// NewMetrics registers HTTP and domain counters (community lifecycle,
// membership events, invites, cache hit rates) on a caller-owned
// registry. HTTPMetricsMiddleware instruments the API server and
// RegisterMetricsEndpoint exposes /metrics via promhttp.
//
// # Health
//
// HealthHandler aggregates named dependency probes (postgres ping,
// redis ping) into a /health endpoint that flips to 503 when any
// dependency fails.
package observability
