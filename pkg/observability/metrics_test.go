package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHTTPMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(metrics))
	router.HandleFunc("/api/v1/services/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/services/abc", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/services/def", nil))

	got := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/services/{id}", "404"))
	if got != 2 {
		t.Errorf("Expected 2 requests recorded against the template, got %v", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.CacheHit("service")
	m.CacheMiss("service")
	m.CacheError("get")
	m.LoginAttempt("local", "success")
	m.TokenRefresh("rotated")
	m.AuditEvent("service.created")
}

func TestMetrics_Recorders(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.CacheHit("team")
	metrics.CacheMiss("team")
	metrics.CacheMiss("team")
	metrics.LoginAttempt("local", "invalid_credentials")

	if got := testutil.ToFloat64(metrics.CacheHitsTotal.WithLabelValues("team")); got != 1 {
		t.Errorf("Expected 1 hit, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.CacheMissesTotal.WithLabelValues("team")); got != 2 {
		t.Errorf("Expected 2 misses, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.LoginAttemptsTotal.WithLabelValues("local", "invalid_credentials")); got != 1 {
		t.Errorf("Expected 1 failed login, got %v", got)
	}
}

func TestMetricsHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.AuditEvent("user.created")

	rr := httptest.NewRecorder()
	MetricsHandler(registry).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `appr_audit_events_total{event_type="user.created"} 1`) {
		t.Errorf("Expected audit counter in exposition, got:\n%s", rr.Body.String())
	}
}
