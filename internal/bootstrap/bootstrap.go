package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/complaint-analyst/internal/config"
	"github.com/kirillkom/complaint-analyst/internal/core/domain"
	"github.com/kirillkom/complaint-analyst/internal/core/ports"
	"github.com/kirillkom/complaint-analyst/internal/core/usecase"
	"github.com/kirillkom/complaint-analyst/internal/infrastructure/indexstore"
	"github.com/kirillkom/complaint-analyst/internal/infrastructure/queue/nats"
	"github.com/kirillkom/complaint-analyst/internal/infrastructure/resilience"
	"github.com/kirillkom/complaint-analyst/internal/infrastructure/vector/qdrant"
)

const (
	BackendFlat   = "flat"
	BackendQdrant = "qdrant"
)

type Options struct {
	// Events publishes a query event per answered question when NATS_URL is set.
	Events bool
	// PullIndex downloads the preferred generation from object storage before loading.
	PullIndex bool
	// ClientName identifies this process to NATS.
	ClientName string
}

// IndexInfo describes the loaded generation for readiness reporting.
type IndexInfo struct {
	Generation domain.IndexGeneration
	Backend    string
	Entries    int
	Dimension  int
}

// App holds the query-side object graph. When the index cannot be loaded,
// New still succeeds: Retriever and Pipeline stay nil and LoadErr says why.
type App struct {
	Config config.Config

	Executor    *resilience.Executor
	Embedder    ports.Embedder
	Synthesizer ports.AnswerSynthesizer

	Store     *indexstore.Store
	Retriever *usecase.Retriever
	Pipeline  *usecase.Pipeline
	Queue     *nats.Queue
	Index     IndexInfo
	LoadErr   error

	providers *providers
	closeFns  []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	executor := NewExecutor(cfg)
	p := newProviders(cfg, executor)

	embedder, err := p.Embedder()
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	synthesizer, err := p.Synthesizer()
	switch {
	case domain.IsKind(err, domain.ErrSynthesisUnavailable):
		slog.Warn("synthesis_unavailable", "provider", cfg.SynthProvider, "error", err)
		synthesizer = nil
	case err != nil:
		return nil, fmt.Errorf("init synthesizer: %w", err)
	}

	app := &App{
		Config:      cfg,
		Executor:    executor,
		Embedder:    embedder,
		Synthesizer: synthesizer,
		providers:   p,
	}

	if models := p.ollamaModels(); len(models) > 0 {
		if err := p.ollamaClient().EnsureModels(ctx, models...); err != nil {
			slog.Warn("ollama_models_unavailable", "models", models, "error", err)
		}
	}

	if opts.PullIndex && cfg.IndexS3Endpoint != "" {
		if gen, err := PullIndex(ctx, cfg); err != nil {
			slog.Warn("index_pull_failed", "bucket", cfg.IndexS3Bucket, "error", err)
		} else {
			slog.Info("index_pull_completed", "generation", string(gen))
		}
	}

	if err := app.loadIndex(ctx); err != nil {
		app.LoadErr = err
		slog.Error("index_load_failed", "dir", cfg.IndexDir, "backend", cfg.IndexBackend, "error", err)
		return app, nil
	}

	var events ports.MessageQueue
	if opts.Events && cfg.NATSURL != "" {
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
			ClientName:         opts.ClientName,
		})
		if err != nil {
			slog.Warn("query_events_disabled", "url", cfg.NATSURL, "error", err)
		} else {
			app.Queue = queue
			app.closeFns = append(app.closeFns, queue.Close)
			events = queue
		}
	}

	app.Pipeline = usecase.NewPipeline(app.Retriever, synthesizer, usecase.PipelineOptions{
		TopK:   cfg.RAGTopK,
		Events: events,
	})
	return app, nil
}

// NewExecutor builds the shared retry and circuit breaker policy from config.
func NewExecutor(cfg config.Config) *resilience.Executor {
	return resilience.NewExecutor(resilience.FromSettings(resilience.Settings{
		MaxAttempts:    cfg.ResilienceRetryMaxAttempts,
		InitialBackoff: cfg.ResilienceRetryInitialBackoff,
		MaxBackoff:     cfg.ResilienceRetryMaxBackoff,
		BreakerEnabled: cfg.ResilienceBreakerEnabled,
		MinRequests:    cfg.ResilienceBreakerMinRequests,
		FailureRatio:   cfg.ResilienceBreakerFailureRatio,
		OpenTimeout:    cfg.ResilienceBreakerOpenTimeout,
	}))
}

// NewEmbedder returns the configured encoder for tools that do not need a loaded index.
func NewEmbedder(cfg config.Config) (ports.Embedder, error) {
	return newProviders(cfg, NewExecutor(cfg)).Embedder()
}

func (a *App) loadIndex(ctx context.Context) error {
	backend := strings.ToLower(strings.TrimSpace(a.Config.IndexBackend))
	if backend != BackendFlat && backend != BackendQdrant {
		return domain.WrapError(domain.ErrInvalidInput, "load index", fmt.Errorf("unknown INDEX_BACKEND %q", a.Config.IndexBackend))
	}
	remote := backend == BackendQdrant

	store, err := indexstore.Open(a.Config.IndexDir, indexstore.Options{
		Encoder:      a.Embedder.Identity(),
		MetadataOnly: remote,
	})
	if err != nil {
		return err
	}
	if a.Config.IndexStrictVerify {
		if _, err := store.Verify(); err != nil {
			return err
		}
	}

	var index ports.VectorIndex
	if remote {
		q := qdrant.New(a.Config.QdrantURL, a.Config.QdrantCollection, qdrant.Options{Executor: a.Executor})
		if err := q.Refresh(ctx); err != nil {
			return err
		}
		index = q
	} else {
		index = store.Index()
	}

	retriever, err := usecase.NewRetriever(a.Embedder, index, store, usecase.RetrieverOptions{
		OverfetchFactor: a.Config.RAGOverfetchFactor,
		AllowCorrupt:    !a.Config.IndexStrictVerify,
	})
	if err != nil {
		return err
	}

	a.Store = store
	a.Retriever = retriever
	a.Index = IndexInfo{
		Generation: store.Generation(),
		Backend:    backend,
		Entries:    store.Len(),
		Dimension:  index.Dimension(),
	}
	slog.Info("index_loaded",
		"generation", string(a.Index.Generation),
		"backend", backend,
		"entries", a.Index.Entries,
		"dimension", a.Index.Dimension,
		"layout", string(store.Layout()),
	)
	return nil
}

// Ready reports whether questions can be answered.
func (a *App) Ready() bool {
	return a.LoadErr == nil && a.Pipeline != nil
}

// Searcher returns the retriever as an inbound port, nil while not ready.
func (a *App) Searcher() ports.ComplaintSearcher {
	if !a.Ready() {
		return nil
	}
	return a.Retriever
}

// QueryService returns the pipeline as an inbound port, nil while not ready.
func (a *App) QueryService() ports.ComplaintQueryService {
	if !a.Ready() {
		return nil
	}
	return a.Pipeline
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
