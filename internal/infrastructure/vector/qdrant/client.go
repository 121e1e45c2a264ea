package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
	"github.com/kirillkom/complaint-analyst/internal/infrastructure/resilience"
)

const defaultUploadBatch = 512

// Index serves nearest-neighbor search from a Qdrant collection whose point ids
// are the ordinals of the local metadata sequence. The collection uses Euclid
// distance; returned distances are squared so scores match the flat index.
type Index struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	mu        sync.RWMutex
	count     int
	dimension int
}

type Options struct {
	Timeout  time.Duration
	Executor *resilience.Executor
}

func New(baseURL, collection string, opts Options) *Index {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Index{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: opts.Timeout},
		executor:   opts.Executor,
	}
}

func (c *Index) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.count
}

func (c *Index) Dimension() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dimension
}

// Refresh loads point count and vector size from the collection info.
func (c *Index) Refresh(ctx context.Context) error {
	var info struct {
		Result struct {
			PointsCount int `json:"points_count"`
			Config      struct {
				Params struct {
					Vectors struct {
						Size     int    `json:"size"`
						Distance string `json:"distance"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	err := c.execute(ctx, "qdrant.collection_info", func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodGet, c.collectionURL(""), nil, &info, "collection info")
	})
	if err != nil {
		if resilience.HasStatus(err, http.StatusNotFound) {
			return domain.WrapError(domain.ErrIndexNotFound, "qdrant collection info", err)
		}
		return err
	}

	vectors := info.Result.Config.Params.Vectors
	if vectors.Distance != "" && !strings.EqualFold(vectors.Distance, "Euclid") {
		return domain.WrapError(domain.ErrIndexCorrupt, "qdrant collection info",
			fmt.Errorf("collection %s uses %s distance, expected Euclid", c.collection, vectors.Distance))
	}

	c.mu.Lock()
	c.count = info.Result.PointsCount
	c.dimension = vectors.Size
	c.mu.Unlock()
	slog.Info("qdrant_collection_loaded", "collection", c.collection, "points", info.Result.PointsCount, "dimension", vectors.Size)
	return nil
}

func (c *Index) Search(ctx context.Context, query []float32, k int) ([]domain.Neighbor, error) {
	if k <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "qdrant search", fmt.Errorf("k must be positive, got %d", k))
	}
	if dim := c.Dimension(); dim > 0 && len(query) != dim {
		return nil, domain.WrapError(domain.ErrEncoderMismatch, "qdrant search",
			fmt.Errorf("query dimension %d, collection dimension %d", len(query), dim))
	}

	reqBody := map[string]any{
		"vector":       query,
		"limit":        k,
		"with_payload": false,
	}
	var searchResp struct {
		Result []struct {
			ID    json.RawMessage `json:"id"`
			Score float64         `json:"score"`
		} `json:"result"`
	}
	err := c.execute(ctx, "qdrant.search", func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPost, c.collectionURL("/points/search"), reqBody, &searchResp, "search")
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.Neighbor, 0, k)
	for _, r := range searchResp.Result {
		ordinal, err := strconv.ParseInt(string(r.ID), 10, 64)
		if err != nil {
			slog.Warn("qdrant_point_id_not_ordinal", "id", string(r.ID))
			continue
		}
		out = append(out, domain.Neighbor{Ordinal: ordinal, Distance: float32(r.Score * r.Score)})
	}
	for len(out) < k {
		out = append(out, domain.Neighbor{Ordinal: domain.NoNeighbor, Distance: math.MaxFloat32})
	}
	return out, nil
}

// Upload (re)publishes vectors with their ordinals as point ids.
func (c *Index) Upload(ctx context.Context, vectors [][]float32, chunks []domain.ChunkMeta, batchSize int) error {
	if len(vectors) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return domain.WrapError(domain.ErrIndexCorrupt, "qdrant upload",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)))
	}
	if batchSize <= 0 {
		batchSize = defaultUploadBatch
	}
	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	type point struct {
		ID      int64          `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	for offset := 0; offset < len(vectors); offset += batchSize {
		end := min(offset+batchSize, len(vectors))
		points := make([]point, 0, end-offset)
		for i := offset; i < end; i++ {
			points = append(points, point{
				ID:     int64(i),
				Vector: vectors[i],
				Payload: map[string]any{
					"chunk_id": chunks[i].ChunkID,
					"product":  chunks[i].Product,
				},
			})
		}
		reqBody := map[string]any{"points": points}
		err := c.execute(ctx, "qdrant.upsert", func(ctx context.Context) error {
			return c.doJSON(ctx, http.MethodPut, c.collectionURL("/points?wait=true"), reqBody, nil, "upsert")
		})
		if err != nil {
			return fmt.Errorf("upsert points %d-%d: %w", offset, end, err)
		}
		slog.Debug("qdrant_points_upserted", "from", offset, "to", end)
	}

	c.mu.Lock()
	c.count = len(vectors)
	c.dimension = len(vectors[0])
	c.mu.Unlock()
	return nil
}

func (c *Index) ensureCollection(ctx context.Context, vectorSize int) error {
	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Euclid",
		},
	}
	err := c.execute(ctx, "qdrant.ensure_collection", func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPut, c.collectionURL(""), reqBody, nil, "ensure collection")
	})
	if resilience.HasStatus(err, http.StatusConflict) {
		return nil
	}
	return err
}

func (c *Index) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", c.baseURL, c.collection, suffix)
}

func (c *Index) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	var err error
	if c.executor == nil {
		err = fn(ctx)
	} else {
		err = c.executor.Execute(ctx, operation, fn, classifyQdrantError)
	}
	return wrapTemporaryIfNeeded(operation, err)
}

func (c *Index) doJSON(ctx context.Context, method, url string, payload any, out any, operation string) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", operation, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &resilience.StatusError{Service: "qdrant", Operation: operation, StatusCode: resp.StatusCode, Status: resp.Status, Body: string(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}
