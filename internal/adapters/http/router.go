package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/complaint-analyst/internal/config"
	"github.com/kirillkom/complaint-analyst/internal/core/domain"
	"github.com/kirillkom/complaint-analyst/internal/core/ports"
	"github.com/kirillkom/complaint-analyst/internal/observability/metrics"
)

const (
	serviceName     = "api"
	maxRequestBytes = 64 << 10
	maxSearchTopK   = 100
)

// Services are the use cases the router serves. Searcher and Query stay nil
// while no index is loaded; LoadErr then explains why.
type Services struct {
	Searcher ports.ComplaintSearcher
	Query    ports.ComplaintQueryService
	Index    IndexStatus
	LoadErr  error
}

type IndexStatus struct {
	Generation string `json:"generation,omitempty"`
	Backend    string `json:"backend,omitempty"`
	Entries    int    `json:"entries"`
	Dimension  int    `json:"dimension,omitempty"`
}

type Router struct {
	cfg      config.Config
	services Services
	metrics  *metrics.HTTPServerMetrics
	limiter  *rate.Limiter
}

func NewRouter(cfg config.Config, services Services, httpMetrics *metrics.HTTPServerMetrics) *Router {
	if cfg.RAGTopK <= 0 {
		cfg.RAGTopK = 5
	}
	return &Router{
		cfg:      cfg,
		services: services,
		metrics:  httpMetrics,
		limiter:  newLimiter(cfg.APIRateLimitRPS, cfg.APIRateLimitBurst),
	}
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /v1/products", rt.listProducts)
	api.HandleFunc("POST /v1/complaints/search", rt.searchComplaints)
	api.HandleFunc("POST /v1/complaints/query", rt.queryComplaints)
	api.HandleFunc("POST /v1/complaints/query/stream", rt.streamComplaints)

	var guarded http.Handler = api
	guarded = rt.authMiddleware(guarded)
	guarded = backpressureMiddleware(guarded, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait)
	guarded = rateLimitMiddleware(guarded, rt.limiter)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /readyz", rt.readyz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.Handle("/v1/", guarded)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) readyz(w http.ResponseWriter, r *http.Request) {
	if err := rt.ready(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":     "not_ready",
			"error":      err.Error(),
			"request_id": requestIDFromContext(r.Context()),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"index":  rt.services.Index,
	})
}

func (rt *Router) ready() error {
	if rt.services.LoadErr != nil {
		return domain.WrapError(domain.ErrSystemNotReady, "load index", rt.services.LoadErr)
	}
	if rt.services.Searcher == nil || rt.services.Query == nil {
		return domain.WrapError(domain.ErrSystemNotReady, "load index", errors.New("no index loaded"))
	}
	return nil
}

func (rt *Router) listProducts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"products": domain.ProductOptions})
}

type searchRequest struct {
	Query   string `json:"query"`
	TopK    int    `json:"top_k"`
	Product string `json:"product"`
}

func (rt *Router) searchComplaints(w http.ResponseWriter, r *http.Request) {
	if err := rt.ready(); err != nil {
		rt.writeError(w, r, err)
		return
	}
	var req searchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	// A blank query is still embedded and searched, it is not a caller error.
	topK := req.TopK
	if topK == 0 {
		topK = rt.cfg.RAGTopK
	}
	if topK > maxSearchTopK {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "search complaints", fmt.Errorf("top_k must not exceed %d", maxSearchTopK)))
		return
	}

	started := time.Now()
	filter := domain.NormalizeProductFilter(req.Product)
	results, err := rt.services.Searcher.Search(r.Context(), req.Query, topK, filter)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if results == nil {
		results = []domain.SearchResult{}
	}
	rt.observe("search", req.Product, results, "", time.Since(started))
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"count":   len(results),
	})
}

type queryRequest struct {
	Question string `json:"question"`
	Product  string `json:"product"`
}

func (rt *Router) queryComplaints(w http.ResponseWriter, r *http.Request) {
	req, ok := rt.decodeQuery(w, r)
	if !ok {
		return
	}

	started := time.Now()
	answer, err := rt.services.Query.Query(r.Context(), req.Question, req.Product)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if answer.SourceDocuments == nil {
		answer.SourceDocuments = []domain.SearchResult{}
	}
	rt.observe("query", req.Product, answer.SourceDocuments, answer.SynthesisStatus, time.Since(started))
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) streamComplaints(w http.ResponseWriter, r *http.Request) {
	req, ok := rt.decodeQuery(w, r)
	if !ok {
		return
	}

	started := time.Now()
	stream, err := rt.services.Query.QueryStream(r.Context(), req.Question, req.Product)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if _, err := writeAnswerStream(w, stream); err != nil {
		slog.Warn("answer_stream_interrupted",
			"request_id", requestIDFromContext(r.Context()),
			"error", err,
		)
	}
	rt.observe("query_stream", req.Product, stream.SourceDocuments, stream.SynthesisStatus, time.Since(started))
}

func (rt *Router) decodeQuery(w http.ResponseWriter, r *http.Request) (queryRequest, bool) {
	var req queryRequest
	if err := rt.ready(); err != nil {
		rt.writeError(w, r, err)
		return req, false
	}
	if err := decodeJSON(w, r, &req); err != nil {
		rt.writeError(w, r, err)
		return req, false
	}
	if strings.TrimSpace(req.Question) == "" {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "query complaints", errors.New("question is required")))
		return req, false
	}
	return req, true
}

func (rt *Router) observe(endpoint, product string, sources []domain.SearchResult, status domain.SynthesisStatus, elapsed time.Duration) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordRetrieval(serviceName, endpoint, sources, elapsed)
	rt.metrics.RecordProductFilter(serviceName, product)
	if status != "" {
		rt.metrics.RecordSynthesis(serviceName, endpoint, status)
	}
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	body := map[string]string{
		"error":      err.Error(),
		"request_id": requestIDFromContext(r.Context()),
	}
	if domain.IsKind(err, domain.ErrSystemNotReady) {
		body["status"] = "not_ready"
	}
	if status >= http.StatusInternalServerError {
		slog.Error("http_request_failed",
			"request_id", body["request_id"],
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
		if status == http.StatusInternalServerError {
			body["error"] = "internal error"
		}
	}
	writeJSON(w, status, body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.WrapError(domain.ErrInvalidInput, "decode request", errors.New("empty body"))
		}
		return domain.WrapError(domain.ErrInvalidInput, "decode request", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
