package domain

import (
	"iter"
	"time"
)

// NoNeighbor marks an empty slot in a nearest-neighbor result.
const NoNeighbor int64 = -1

type Neighbor struct {
	Ordinal  int64
	Distance float32
}

type SearchResult struct {
	Text    string  `json:"text"`
	Product string  `json:"product"`
	ChunkID string  `json:"chunk_id"`
	Score   float64 `json:"score"`
}

// DistanceScore maps a non-negative distance into (0, 1]; 1 only for an exact match.
func DistanceScore(distance float32) float64 {
	d := float64(distance)
	if d < 0 {
		d = 0
	}
	return 1 / (1 + d)
}

type SynthesisStatus string

const (
	SynthesisOK          SynthesisStatus = "ok"
	SynthesisNoEvidence  SynthesisStatus = "no_evidence"
	SynthesisUnavailable SynthesisStatus = "unavailable"
)

const (
	NoEvidenceMessage           = "I couldn't find any relevant complaints to answer your question."
	SynthesisUnavailableMessage = "Answer synthesis is currently unavailable. The most relevant complaint excerpts are listed as sources."
)

type Answer struct {
	Answer          string          `json:"answer"`
	SourceDocuments []SearchResult  `json:"source_documents"`
	SynthesisStatus SynthesisStatus `json:"synthesis_status"`
}

// AnswerStream carries retrieved evidence plus a lazily produced answer.
// Fragments can be ranged over once.
type AnswerStream struct {
	SourceDocuments []SearchResult
	SynthesisStatus SynthesisStatus
	Fragments       iter.Seq2[string, error]
}

type SamplingOptions struct {
	MaxTokens   int
	Temperature float64
	TopK        int
	TopP        float64
}

// QueryEvent is published after every answered question.
type QueryEvent struct {
	ID              string          `json:"id"`
	Question        string          `json:"question"`
	ProductFilter   string          `json:"product_filter,omitempty"`
	ResultCount     int             `json:"result_count"`
	TopScore        float64         `json:"top_score"`
	SynthesisStatus SynthesisStatus `json:"synthesis_status"`
	DurationMS      float64         `json:"duration_ms"`
	CreatedAt       time.Time       `json:"created_at"`
}
