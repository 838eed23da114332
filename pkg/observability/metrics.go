package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Community lifecycle metrics
	CommunitiesCreatedTotal prometheus.Counter
	CommunitiesDeletedTotal *prometheus.CounterVec
	MembershipEventsTotal   *prometheus.CounterVec
	RoleChangesTotal        *prometheus.CounterVec

	// Invite metrics
	InvitesIssuedTotal  prometheus.Counter
	InvitesExpiredTotal prometheus.Counter

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "huddle_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "huddle_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		CommunitiesCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "huddle_communities_created_total",
				Help: "Total number of communities created",
			},
		),
		CommunitiesDeletedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "huddle_communities_deleted_total",
				Help: "Total number of communities deleted, by trigger",
			},
			[]string{"trigger"},
		),
		MembershipEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "huddle_membership_events_total",
				Help: "Total number of membership joins and leaves",
			},
			[]string{"event"},
		),
		RoleChangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "huddle_role_changes_total",
				Help: "Total number of member role changes",
			},
			[]string{"new_role"},
		),

		InvitesIssuedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "huddle_invites_issued_total",
				Help: "Total number of invites issued",
			},
		),
		InvitesExpiredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "huddle_invites_expired_total",
				Help: "Total number of expired invites removed by the cleanup worker",
			},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "huddle_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "huddle_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type"},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "huddle_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "huddle_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CommunitiesCreatedTotal,
		m.CommunitiesDeletedTotal,
		m.MembershipEventsTotal,
		m.RoleChangesTotal,
		m.InvitesIssuedTotal,
		m.InvitesExpiredTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// SetDBStats feeds the connection-pool gauges from sql.DB.Stats(). Called
// periodically by the composition root.
func (m *Metrics) SetDBStats(stats sql.DBStats) {
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
