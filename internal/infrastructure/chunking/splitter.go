package chunking

import (
	"strings"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
)

const (
	DefaultChunkSize = 500
	DefaultOverlap   = 50
)

// Splitter cuts text into fixed-size rune windows. A window starts every
// ChunkSize-Overlap runes while the start lies inside the text, so the last
// window may be fully covered by its predecessor. Chunk ids of published
// stores depend on that numbering.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 10
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)

	step := s.ChunkSize - s.Overlap
	if step <= 0 {
		step = 1
	}

	out := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := min(start+s.ChunkSize, len(runes))
		out = append(out, string(runes[start:end]))
	}
	return out
}

// SplitComplaint windows a cleaned complaint into chunk records with ids
// "<complaint id>_<window index>".
func (s *Splitter) SplitComplaint(c domain.Complaint) []domain.ChunkRecord {
	windows := s.Split(c.Narrative)
	if len(windows) == 0 {
		return nil
	}
	out := make([]domain.ChunkRecord, 0, len(windows))
	for i, w := range windows {
		out = append(out, domain.ChunkRecord{
			ChunkID:    domain.ChunkID(c.ID, i),
			Text:       w,
			Product:    c.Product,
			OriginalID: c.ID,
		})
	}
	return out
}
