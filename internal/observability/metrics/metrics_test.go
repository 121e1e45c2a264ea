package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
)

func TestMiddlewareRecordsStatus(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/wp-admin", nil))

	if got := testutil.ToFloat64(m.requestTotal.WithLabelValues("api", http.MethodGet, "/readyz", "503")); got != 1 {
		t.Fatalf("expected one readyz request, got %v", got)
	}
	if got := testutil.ToFloat64(m.requestTotal.WithLabelValues("api", http.MethodGet, "other", "503")); got != 1 {
		t.Fatalf("expected unknown path folded into other, got %v", got)
	}
}

func TestRecordRetrievalSplitsHitsAndMisses(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.RecordRetrieval("api", "query", []domain.SearchResult{{Score: 0.9}}, 10*time.Millisecond)
	m.RecordRetrieval("api", "query", nil, 5*time.Millisecond)

	if got := testutil.ToFloat64(m.ragRetrievalHitTotal.WithLabelValues("api", "query")); got != 1 {
		t.Fatalf("expected one hit, got %v", got)
	}
	if got := testutil.ToFloat64(m.ragNoContextTotal.WithLabelValues("api", "query")); got != 1 {
		t.Fatalf("expected one miss, got %v", got)
	}
}

func TestRecordProductFilterBoundsLabels(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.RecordProductFilter("api", "")
	m.RecordProductFilter("api", "All Products")
	m.RecordProductFilter("api", "Mortgage")
	m.RecordProductFilter("api", "anything else")

	if got := testutil.ToFloat64(m.productFilterTotal.WithLabelValues("api", domain.AllProducts)); got != 2 {
		t.Fatalf("expected two unfiltered requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.productFilterTotal.WithLabelValues("api", "other")); got != 1 {
		t.Fatalf("expected one other request, got %v", got)
	}
}

func TestHandlerExposesIndexGauge(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.SetIndexState(true, 1234)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, "complaints_index_entries") || !strings.Contains(body, "1234") {
		t.Fatalf("expected index gauge in exposition, got:\n%s", body)
	}
}

func TestWorkerMetricsCountsByStatus(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.StartEvent()
	m.FinishEvent("worker", time.Millisecond, nil)
	m.StartEvent()
	m.FinishEvent("worker", time.Millisecond, errors.New("db down"))

	if got := testutil.ToFloat64(m.eventsTotal.WithLabelValues("worker", "error")); got != 1 {
		t.Fatalf("expected one error, got %v", got)
	}
	if got := testutil.ToFloat64(m.eventsInFlight); got != 0 {
		t.Fatalf("expected no events in flight, got %v", got)
	}
}

func TestUpstreamResilienceMetrics(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.RecordUpstreamRetry("ollama.embed", 1)
	m.RecordUpstreamRetry("ollama.embed", 2)
	m.SetBreakerState("qdrant.search", "open")
	m.SetBreakerState("ollama.embed", "half-open")

	if got := testutil.ToFloat64(m.upstreamRetries.WithLabelValues("ollama.embed")); got != 2 {
		t.Fatalf("expected two retries, got %v", got)
	}
	if got := testutil.ToFloat64(m.breakerOpen.WithLabelValues("qdrant.search")); got != 1 {
		t.Fatalf("expected open breaker gauge 1, got %v", got)
	}
	m.SetBreakerState("qdrant.search", "closed")
	if got := testutil.ToFloat64(m.breakerOpen.WithLabelValues("qdrant.search")); got != 0 {
		t.Fatalf("expected closed breaker gauge 0, got %v", got)
	}
	if got := testutil.ToFloat64(m.breakerOpen.WithLabelValues("ollama.embed")); got != 0.5 {
		t.Fatalf("expected half-open gauge 0.5, got %v", got)
	}
}
