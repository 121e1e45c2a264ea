package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
	"github.com/kirillkom/complaint-analyst/internal/core/ports"
)

const defaultOverfetchFactor = 5

type RetrieverOptions struct {
	// OverfetchFactor multiplies top k when a product filter is set.
	OverfetchFactor int
	// AllowCorrupt keeps serving a store whose vector and metadata counts differ.
	AllowCorrupt bool
}

// Retriever maps a natural-language query to ranked, scored complaint excerpts.
// It holds only read-only collaborators and is safe for concurrent use.
type Retriever struct {
	embedder  ports.Embedder
	index     ports.VectorIndex
	catalog   ports.ChunkCatalog
	overfetch int
}

func NewRetriever(
	embedder ports.Embedder,
	index ports.VectorIndex,
	catalog ports.ChunkCatalog,
	opts RetrieverOptions,
) (*Retriever, error) {
	if embedder == nil || index == nil || catalog == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "new retriever", fmt.Errorf("embedder, index and catalog are required"))
	}
	if vectors, entries := index.Len(), catalog.Len(); vectors != entries {
		err := domain.WrapError(domain.ErrIndexCorrupt, "new retriever", fmt.Errorf("%d vectors, %d metadata entries", vectors, entries))
		if !opts.AllowCorrupt {
			return nil, err
		}
		slog.Error("index_integrity_violation", "vectors", vectors, "metadata", entries, "error", err)
	}
	if want, got := index.Dimension(), embedder.Identity().Dimension; want > 0 && got > 0 && want != got {
		return nil, domain.WrapError(domain.ErrEncoderMismatch, "new retriever", fmt.Errorf("index dimension %d, encoder dimension %d", want, got))
	}

	overfetch := opts.OverfetchFactor
	if overfetch <= 0 {
		overfetch = defaultOverfetchFactor
	}
	return &Retriever{
		embedder:  embedder,
		index:     index,
		catalog:   catalog,
		overfetch: overfetch,
	}, nil
}

// Search returns at most topK results, best first. Fewer results than topK,
// including none, is a valid outcome when the filter is selective.
func (r *Retriever) Search(ctx context.Context, query string, topK int, productFilter string) ([]domain.SearchResult, error) {
	if topK <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", fmt.Errorf("top k must be positive, got %d", topK))
	}
	started := time.Now()
	filter := strings.TrimSpace(productFilter)

	queryVector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	size := r.index.Len()
	if size == 0 {
		return []domain.SearchResult{}, nil
	}

	// topK may be arbitrarily large; multiply only when it cannot overflow.
	fetchK := topK
	if filter != "" && topK <= size/r.overfetch {
		fetchK = topK * r.overfetch
	}
	fetchK = min(fetchK, size)
	results := make([]domain.SearchResult, 0, min(topK, size))

	neighbors, err := r.index.Search(ctx, queryVector, fetchK)
	if err != nil {
		return nil, fmt.Errorf("search vector index: %w", err)
	}

	for _, n := range neighbors {
		if n.Ordinal == domain.NoNeighbor {
			continue
		}
		meta, ok := r.catalog.Chunk(n.Ordinal)
		if !ok {
			continue
		}
		if !domain.MatchesProduct(meta.Product, filter) {
			continue
		}
		results = append(results, domain.SearchResult{
			Text:    meta.Text,
			Product: meta.Product,
			ChunkID: meta.ChunkID,
			Score:   domain.DistanceScore(n.Distance),
		})
		if len(results) >= topK {
			break
		}
	}

	slog.Debug("retrieval_completed",
		"top_k", topK,
		"fetch_k", fetchK,
		"product_filter", filter,
		"candidates", len(neighbors),
		"results", len(results),
		"duration_ms", float64(time.Since(started).Microseconds())/1000.0,
	)
	return results, nil
}
