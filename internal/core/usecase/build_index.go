package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
	"github.com/kirillkom/complaint-analyst/internal/core/ports"
)

const (
	defaultEmbedBatchSize = 256
	defaultEmbedWorkers   = 4
)

type BuildOptions struct {
	BatchSize int
	Workers   int
}

type BuildStats struct {
	Generation domain.IndexGeneration `json:"generation"`
	Chunks     int                    `json:"chunks"`
	Batches    int                    `json:"batches"`
	Dimension  int                    `json:"dimension"`
	DurationMS int64                  `json:"duration_ms"`
}

// IndexBuilder embeds chunk records in bounded parallel batches and persists
// the vectors positionally aligned with their records.
type IndexBuilder struct {
	embedder  ports.Embedder
	writer    ports.IndexWriter
	batchSize int
	workers   int
}

func NewIndexBuilder(embedder ports.Embedder, writer ports.IndexWriter, opts BuildOptions) *IndexBuilder {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultEmbedBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultEmbedWorkers
	}
	return &IndexBuilder{
		embedder:  embedder,
		writer:    writer,
		batchSize: opts.BatchSize,
		workers:   opts.Workers,
	}
}

func (uc *IndexBuilder) Build(ctx context.Context, gen domain.IndexGeneration, chunks []domain.ChunkRecord) (BuildStats, error) {
	started := time.Now()
	stats := BuildStats{Generation: gen, Chunks: len(chunks)}
	if len(chunks) == 0 {
		return stats, domain.WrapError(domain.ErrInvalidInput, "build index", errors.New("no chunks to embed"))
	}

	vectors, batches, err := uc.embedAll(ctx, chunks)
	if err != nil {
		return stats, err
	}
	stats.Batches = batches

	identity := uc.embedder.Identity()
	dim, err := uniformDimension(vectors, identity.Dimension)
	if err != nil {
		return stats, err
	}
	identity.Dimension = dim
	stats.Dimension = dim

	if err := uc.writer.WriteIndex(ctx, gen, identity, vectors, chunks); err != nil {
		return stats, fmt.Errorf("write index: %w", err)
	}

	stats.DurationMS = time.Since(started).Milliseconds()
	slog.Info("index_built",
		"generation", string(gen),
		"chunks", stats.Chunks,
		"batches", stats.Batches,
		"dimension", dim,
		"duration_ms", stats.DurationMS,
	)
	return stats, nil
}

func (uc *IndexBuilder) embedAll(ctx context.Context, chunks []domain.ChunkRecord) ([][]float32, int, error) {
	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.workers)

	batches := 0
	for offset := 0; offset < len(chunks); offset += uc.batchSize {
		end := min(offset+uc.batchSize, len(chunks))
		batch := chunks[offset:end]
		start := offset
		batches++

		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, rec := range batch {
				texts[i] = rec.Text
			}
			out, err := uc.embedder.Embed(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed batch at %d: %w", start, err)
			}
			if len(out) != len(batch) {
				return domain.WrapError(
					domain.ErrIndexCorrupt,
					"embed batch",
					fmt.Errorf("vectors/chunks mismatch at %d: %d/%d", start, len(out), len(batch)),
				)
			}
			copy(vectors[start:], out)
			slog.Debug("index_batch_embedded", "offset", start, "size", len(batch))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, batches, err
	}
	return vectors, batches, nil
}

func uniformDimension(vectors [][]float32, want int) (int, error) {
	dim := want
	if dim <= 0 {
		dim = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) != dim {
			return 0, domain.WrapError(
				domain.ErrEncoderMismatch,
				"build index",
				fmt.Errorf("vector %d has dimension %d, expected %d", i, len(v), dim),
			)
		}
	}
	return dim, nil
}
