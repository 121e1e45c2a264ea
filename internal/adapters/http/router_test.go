package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/complaint-analyst/internal/config"
	"github.com/kirillkom/complaint-analyst/internal/core/domain"
	"github.com/kirillkom/complaint-analyst/internal/observability/metrics"
)

type searcherFake struct {
	results []domain.SearchResult
	err     error

	gotTopK   int
	gotFilter string
}

func (f *searcherFake) Search(_ context.Context, _ string, topK int, productFilter string) ([]domain.SearchResult, error) {
	f.gotTopK = topK
	f.gotFilter = productFilter
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type queryFake struct {
	answer    *domain.Answer
	fragments []string
	streamErr error
	err       error
}

func (f *queryFake) Query(context.Context, string, string) (*domain.Answer, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.answer, nil
}

func (f *queryFake) QueryStream(context.Context, string, string) (*domain.AnswerStream, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.AnswerStream{
		SourceDocuments: f.answer.SourceDocuments,
		SynthesisStatus: f.answer.SynthesisStatus,
		Fragments: func(yield func(string, error) bool) {
			for _, fragment := range f.fragments {
				if !yield(fragment, nil) {
					return
				}
			}
			if f.streamErr != nil {
				yield("", f.streamErr)
			}
		},
	}, nil
}

func readyServices() Services {
	sources := []domain.SearchResult{{Text: "charged twice", Product: "Credit card", ChunkID: "1_0", Score: 0.8}}
	return Services{
		Searcher: &searcherFake{results: sources},
		Query: &queryFake{
			answer:    &domain.Answer{Answer: "Customers report duplicate charges.", SourceDocuments: sources, SynthesisStatus: domain.SynthesisOK},
			fragments: []string{"Customers ", "report ", "duplicate charges."},
		},
		Index: IndexStatus{Generation: "medium", Backend: "flat", Entries: 1, Dimension: 384},
	}
}

func newTestHandler(cfg config.Config, services Services) http.Handler {
	return NewRouter(cfg, services, nil).Handler()
}

func postJSON(t *testing.T, handler http.Handler, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestQueryReturnsAnswerWithSources(t *testing.T) {
	handler := newTestHandler(config.Config{RAGTopK: 5}, readyServices())

	res := postJSON(t, handler, "/v1/complaints/query", map[string]any{"question": "What fees?", "product": "Credit card"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var answer domain.Answer
	if err := json.NewDecoder(res.Body).Decode(&answer); err != nil {
		t.Fatalf("decode answer: %v", err)
	}
	if answer.SynthesisStatus != domain.SynthesisOK || len(answer.SourceDocuments) != 1 {
		t.Fatalf("unexpected answer: %+v", answer)
	}
}

func TestQueryWithoutEvidenceReturnsEmptySourceList(t *testing.T) {
	services := readyServices()
	services.Query = &queryFake{answer: &domain.Answer{Answer: domain.NoEvidenceMessage, SynthesisStatus: domain.SynthesisNoEvidence}}
	handler := newTestHandler(config.Config{}, services)

	res := postJSON(t, handler, "/v1/complaints/query", map[string]any{"question": "anything"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `"source_documents":[]`) {
		t.Fatalf("expected empty source list, got %s", res.Body.String())
	}
}

func TestQueryRejectsBlankQuestion(t *testing.T) {
	handler := newTestHandler(config.Config{}, readyServices())

	res := postJSON(t, handler, "/v1/complaints/query", map[string]any{"question": "   "})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestQueryRejectsMalformedJSON(t *testing.T) {
	handler := newTestHandler(config.Config{}, readyServices())

	req := httptest.NewRequest(http.MethodPost, "/v1/complaints/query", strings.NewReader("{"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestNotReadyReturns503WithStatus(t *testing.T) {
	handler := newTestHandler(config.Config{}, Services{
		LoadErr: domain.WrapError(domain.ErrIndexNotFound, "open index", errors.New("no generation in ./vector_store")),
	})

	res := postJSON(t, handler, "/v1/complaints/query", map[string]any{"question": "fees?"})
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
	var body map[string]string
	_ = json.NewDecoder(res.Body).Decode(&body)
	if body["status"] != "not_ready" {
		t.Fatalf("expected not_ready status, got %v", body)
	}

	probe := httptest.NewRecorder()
	handler.ServeHTTP(probe, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if probe.Code != http.StatusServiceUnavailable || !strings.Contains(probe.Body.String(), "not_ready") {
		t.Fatalf("expected readyz 503 not_ready, got %d %s", probe.Code, probe.Body.String())
	}

	health := httptest.NewRecorder()
	handler.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if health.Code != http.StatusOK {
		t.Fatalf("expected healthz 200 while not ready, got %d", health.Code)
	}
}

func TestReadyzReportsIndex(t *testing.T) {
	handler := newTestHandler(config.Config{}, readyServices())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), `"generation":"medium"`) {
		t.Fatalf("unexpected readyz response: %d %s", res.Code, res.Body.String())
	}
}

func TestSearchDefaultsTopKAndNormalizesFilter(t *testing.T) {
	services := readyServices()
	searcher := services.Searcher.(*searcherFake)
	handler := newTestHandler(config.Config{RAGTopK: 7}, services)

	res := postJSON(t, handler, "/v1/complaints/search", map[string]any{"query": "late fees", "product": "All Products"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if searcher.gotTopK != 7 || searcher.gotFilter != "" {
		t.Fatalf("expected default top k and no filter, got %d %q", searcher.gotTopK, searcher.gotFilter)
	}
}

func TestSearchAcceptsBlankQuery(t *testing.T) {
	services := readyServices()
	searcher := services.Searcher.(*searcherFake)
	handler := newTestHandler(config.Config{RAGTopK: 3}, services)

	res := postJSON(t, handler, "/v1/complaints/search", map[string]any{"query": "  "})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if searcher.gotTopK != 3 {
		t.Fatalf("expected blank query to reach the searcher, got top k %d", searcher.gotTopK)
	}
}

func TestSearchMapsDomainErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "invalid", err: domain.WrapError(domain.ErrInvalidInput, "search", errors.New("top k")), want: http.StatusBadRequest},
		{name: "temporary", err: domain.WrapError(domain.ErrTemporary, "embed", errors.New("ollama down")), want: http.StatusServiceUnavailable},
		{name: "mismatch", err: domain.WrapError(domain.ErrEncoderMismatch, "search", errors.New("dims")), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			services := readyServices()
			services.Searcher = &searcherFake{err: tt.err}
			res := postJSON(t, newTestHandler(config.Config{}, services), "/v1/complaints/search", map[string]any{"query": "x", "top_k": 3})
			if res.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, res.Code)
			}
		})
	}
}

func TestSearchRejectsOversizedTopK(t *testing.T) {
	res := postJSON(t, newTestHandler(config.Config{}, readyServices()), "/v1/complaints/search", map[string]any{"query": "x", "top_k": 1000})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestAPIKeyRequiredWhenConfigured(t *testing.T) {
	handler := newTestHandler(config.Config{APIKey: "secret"}, readyServices())

	res := postJSON(t, handler, "/v1/complaints/query", map[string]any{"question": "fees?"})
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.Code)
	}
	res = postJSON(t, handler, "/v1/complaints/query", map[string]any{"question": "fees?"}, "Authorization", "Bearer wrong")
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", res.Code)
	}
	res = postJSON(t, handler, "/v1/complaints/query", map[string]any{"question": "fees?"}, "Authorization", "Bearer secret")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", res.Code)
	}
}

func TestProductsListsScopes(t *testing.T) {
	res := httptest.NewRecorder()
	newTestHandler(config.Config{}, readyServices()).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/products", nil))

	var body struct {
		Products []string `json:"products"`
	}
	_ = json.NewDecoder(res.Body).Decode(&body)
	if len(body.Products) != len(domain.ProductOptions) || body.Products[0] != domain.AllProducts {
		t.Fatalf("unexpected products: %v", body.Products)
	}
}

func TestWrongMethodIsRejected(t *testing.T) {
	res := httptest.NewRecorder()
	newTestHandler(config.Config{}, readyServices()).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/complaints/query", nil))
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestStreamEmitsSourcesTokensAndDone(t *testing.T) {
	handler := newTestHandler(config.Config{}, readyServices())

	res := postJSON(t, handler, "/v1/complaints/query/stream", map[string]any{"question": "fees?"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if ct := res.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := res.Body.String()
	sourcesAt := strings.Index(body, "event: sources")
	tokenAt := strings.Index(body, "event: token")
	doneAt := strings.Index(body, "event: done")
	if sourcesAt < 0 || tokenAt < sourcesAt || doneAt < tokenAt {
		t.Fatalf("unexpected event order:\n%s", body)
	}
	if strings.Count(body, "event: token") != 3 {
		t.Fatalf("expected 3 token events:\n%s", body)
	}
	if !strings.Contains(body, `"answer":"Customers report duplicate charges."`) {
		t.Fatalf("expected accumulated answer in done event:\n%s", body)
	}
}

func TestStreamReportsMidStreamError(t *testing.T) {
	services := readyServices()
	fake := services.Query.(*queryFake)
	fake.streamErr = errors.New("model connection reset")
	handler := newTestHandler(config.Config{}, services)

	res := postJSON(t, handler, "/v1/complaints/query/stream", map[string]any{"question": "fees?"})
	body := res.Body.String()
	if !strings.Contains(body, "event: error") || strings.Contains(body, "event: done") {
		t.Fatalf("expected error event without done:\n%s", body)
	}
}

func TestMetricsEndpointWhenEnabled(t *testing.T) {
	handler := NewRouter(config.Config{}, readyServices(), metrics.NewHTTPServerMetrics(serviceName)).Handler()
	_ = postJSON(t, handler, "/v1/complaints/query", map[string]any{"question": "fees?"})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "complaints_synthesis_answers_total") {
		t.Fatalf("expected synthesis counter in metrics output, got %d", res.Code)
	}
}
