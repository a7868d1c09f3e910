package observability

import (
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

	// Group lifecycle metrics
	GroupMutationsTotal *prometheus.CounterVec
	DefaultForksTotal   prometheus.Counter

	// Gateway metrics (principal directory + IT service)
	GatewayRequestsTotal   *prometheus.CounterVec
	GatewayRequestDuration *prometheus.HistogramVec

	// Notification metrics
	NotificationsTotal *prometheus.CounterVec

	// Resolver cache metrics
	ResolverCacheHitsTotal   prometheus.Counter
	ResolverCacheMissesTotal prometheus.Counter

	// Audit metrics
	AuditRecordsPruned prometheus.Counter

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rbac_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rbac_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		GroupMutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rbac_group_mutations_total",
				Help: "Total number of group mutations",
			},
			[]string{"operation", "status"},
		),
		DefaultForksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rbac_default_group_forks_total",
				Help: "Total number of platform default groups forked into tenant customs",
			},
		),

		GatewayRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rbac_gateway_requests_total",
				Help: "Total number of upstream gateway requests",
			},
			[]string{"gateway", "status"},
		),
		GatewayRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rbac_gateway_request_duration_seconds",
				Help:    "Upstream gateway request duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"gateway"},
		),

		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rbac_notifications_total",
				Help: "Total number of notification deliveries",
			},
			[]string{"event_type", "status"},
		),

		ResolverCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rbac_resolver_cache_hits_total",
				Help: "Total number of membership resolver cache hits",
			},
		),
		ResolverCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rbac_resolver_cache_misses_total",
				Help: "Total number of membership resolver cache misses",
			},
		),

		AuditRecordsPruned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rbac_audit_records_pruned_total",
				Help: "Total number of audit records removed by retention sweeps",
			},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rbac_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rbac_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.GroupMutationsTotal,
		m.DefaultForksTotal,
		m.GatewayRequestsTotal,
		m.GatewayRequestDuration,
		m.NotificationsTotal,
		m.ResolverCacheHitsTotal,
		m.ResolverCacheMissesTotal,
		m.AuditRecordsPruned,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
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
