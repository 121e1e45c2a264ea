package ports

import (
	"context"
	"io"
	"iter"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
)

// Embedder encodes text into the vector space an index was built in.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Identity() domain.EncoderIdentity
}

// VectorIndex answers exact or approximate nearest-neighbor queries over positional ordinals.
// Results are ascending by distance; unfilled slots carry domain.NoNeighbor.
type VectorIndex interface {
	Len() int
	Dimension() int
	Search(ctx context.Context, query []float32, k int) ([]domain.Neighbor, error)
}

// ChunkCatalog resolves ordinals to normalized metadata.
type ChunkCatalog interface {
	Len() int
	Chunk(ordinal int64) (domain.ChunkMeta, bool)
}

// AnswerSynthesizer turns a question plus evidence into prose.
// With no evidence it must still return a non-empty, user-presentable message.
type AnswerSynthesizer interface {
	GenerateAnswer(ctx context.Context, question string, chunks []domain.SearchResult) (string, error)
}

// StreamingSynthesizer yields the answer in fragments.
type StreamingSynthesizer interface {
	AnswerSynthesizer
	StreamAnswer(ctx context.Context, question string, chunks []domain.SearchResult) iter.Seq2[string, error]
}

// Completer runs a text model and returns only the newly generated continuation.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts domain.SamplingOptions) (string, error)
}

type StreamingCompleter interface {
	Completer
	CompleteStream(ctx context.Context, prompt string, opts domain.SamplingOptions) iter.Seq2[string, error]
}

// Chunker windows a cleaned complaint into chunk records.
type Chunker interface {
	SplitComplaint(c domain.Complaint) []domain.ChunkRecord
}

type ChunkSink interface {
	WriteChunk(rec domain.ChunkRecord) error
}

type ComplaintSink interface {
	WriteComplaint(c domain.Complaint) error
}

// ObjectStorage moves index artifacts by key. Open reports a missing key as domain.ErrIndexNotFound.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

type MessageQueue interface {
	PublishQueryEvent(ctx context.Context, event domain.QueryEvent) error
	SubscribeQueryEvents(ctx context.Context, handler func(context.Context, domain.QueryEvent) error) error
}

type QueryLogRepository interface {
	SaveQueryEvent(ctx context.Context, event domain.QueryEvent) error
	ListRecent(ctx context.Context, limit int) ([]domain.QueryEvent, error)
}

// IndexWriter persists a built generation, vectors positionally aligned with chunks.
type IndexWriter interface {
	WriteIndex(ctx context.Context, gen domain.IndexGeneration, encoder domain.EncoderIdentity, vectors [][]float32, chunks []domain.ChunkRecord) error
}
