package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
	CacheErrorsTotal *prometheus.CounterVec

	// Auth metrics
	LoginAttemptsTotal *prometheus.CounterVec
	TokenRefreshTotal  *prometheus.CounterVec

	// Audit metrics
	AuditEventsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appr_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "appr_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appr_cache_hits_total",
				Help: "Total number of list cache hits",
			},
			[]string{"entity_type"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appr_cache_misses_total",
				Help: "Total number of list cache misses",
			},
			[]string{"entity_type"},
		),
		CacheErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appr_cache_errors_total",
				Help: "Total number of cache operations that failed and degraded",
			},
			[]string{"operation"},
		),
		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appr_login_attempts_total",
				Help: "Login attempts by outcome",
			},
			[]string{"provider", "outcome"},
		),
		TokenRefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appr_token_refresh_total",
				Help: "Refresh token rotations by outcome",
			},
			[]string{"outcome"},
		),
		AuditEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appr_audit_events_total",
				Help: "Audit events written",
			},
			[]string{"event_type"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheErrorsTotal,
		m.LoginAttemptsTotal,
		m.TokenRefreshTotal,
		m.AuditEventsTotal,
	)

	return m
}

// The recorders below are nil-safe so components can run without metrics.

func (m *Metrics) CacheHit(entityType string) {
	if m != nil {
		m.CacheHitsTotal.WithLabelValues(entityType).Inc()
	}
}

func (m *Metrics) CacheMiss(entityType string) {
	if m != nil {
		m.CacheMissesTotal.WithLabelValues(entityType).Inc()
	}
}

func (m *Metrics) CacheError(operation string) {
	if m != nil {
		m.CacheErrorsTotal.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) LoginAttempt(provider, outcome string) {
	if m != nil {
		m.LoginAttemptsTotal.WithLabelValues(provider, outcome).Inc()
	}
}

func (m *Metrics) TokenRefresh(outcome string) {
	if m != nil {
		m.TokenRefreshTotal.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) AuditEvent(eventType string) {
	if m != nil {
		m.AuditEventsTotal.WithLabelValues(eventType).Inc()
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// routeLabel prefers the mux route template so ids don't explode label cardinality
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			path := routeLabel(r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
