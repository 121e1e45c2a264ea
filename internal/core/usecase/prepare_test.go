package usecase

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
)

// windowChunkerFake cuts narratives into fixed byte windows without overlap.
type windowChunkerFake struct {
	size int
}

func (f windowChunkerFake) SplitComplaint(c domain.Complaint) []domain.ChunkRecord {
	var out []domain.ChunkRecord
	for i, start := 0, 0; start < len(c.Narrative); i, start = i+1, start+f.size {
		end := min(start+f.size, len(c.Narrative))
		out = append(out, domain.ChunkRecord{
			ChunkID:    domain.ChunkID(c.ID, i),
			Text:       c.Narrative[start:end],
			Product:    c.Product,
			OriginalID: c.ID,
		})
	}
	return out
}

type chunkSinkFake struct {
	records []domain.ChunkRecord
	err     error
}

func (f *chunkSinkFake) WriteChunk(rec domain.ChunkRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

type complaintSinkFake struct {
	rows []domain.Complaint
}

func (f *complaintSinkFake) WriteComplaint(c domain.Complaint) error {
	f.rows = append(f.rows, c)
	return nil
}

func complaintRows(rows ...domain.Complaint) iter.Seq2[domain.Complaint, error] {
	return func(yield func(domain.Complaint, error) bool) {
		for _, row := range rows {
			if !yield(row, nil) {
				return
			}
		}
	}
}

var longNarrative = "  I Was Charged Twice for the same purchase and the bank refused to reverse it.  "

func TestCorpusPreparerFiltersAndCleans(t *testing.T) {
	preparer := NewCorpusPreparer(windowChunkerFake{size: 40}, PrepareOptions{MinTextChars: 50})
	chunks := &chunkSinkFake{}
	cleaned := &complaintSinkFake{}

	stats, err := preparer.Prepare(context.Background(), complaintRows(
		domain.Complaint{ID: "1", Product: "Credit card", Narrative: longNarrative},
		domain.Complaint{ID: "2", Product: "Debt collection", Narrative: longNarrative},
		domain.Complaint{ID: "3", Product: "Mortgage", Narrative: ""},
		domain.Complaint{ID: "4", Product: "Mortgage", Narrative: "too short"},
		domain.Complaint{ID: "5", Product: "credit card", Narrative: longNarrative},
	), chunks, cleaned)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	want := PrepareStats{Rows: 5, OffTarget: 2, MissingNarrative: 1, TooShort: 1, Kept: 1, Chunks: 2}
	if stats != want {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(cleaned.rows) != 1 {
		t.Fatalf("expected one cleaned row, got %d", len(cleaned.rows))
	}
	text := cleaned.rows[0].Narrative
	if text != strings.ToLower(strings.TrimSpace(longNarrative)) {
		t.Fatalf("expected lowercased trimmed narrative, got %q", text)
	}
	if chunks.records[0].ChunkID != "1_0" || chunks.records[1].ChunkID != "1_1" {
		t.Fatalf("unexpected chunk ids: %+v", chunks.records)
	}
	if chunks.records[0].Product != "Credit card" || chunks.records[0].OriginalID != "1" {
		t.Fatalf("unexpected chunk attribution: %+v", chunks.records[0])
	}
}

func TestCorpusPreparerKeepsExactlyMinLengthOut(t *testing.T) {
	preparer := NewCorpusPreparer(windowChunkerFake{size: 500}, PrepareOptions{MinTextChars: 5})
	chunks := &chunkSinkFake{}

	stats, err := preparer.Prepare(context.Background(), complaintRows(
		domain.Complaint{ID: "1", Product: "Mortgage", Narrative: "abcde"},
		domain.Complaint{ID: "2", Product: "Mortgage", Narrative: "abcdef"},
	), chunks, nil)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if stats.TooShort != 1 || stats.Kept != 1 {
		t.Fatalf("expected strict length threshold, got %+v", stats)
	}
}

func TestCorpusPreparerAllProductsLabelsUnknown(t *testing.T) {
	preparer := NewCorpusPreparer(windowChunkerFake{size: 500}, PrepareOptions{AllProducts: true})
	chunks := &chunkSinkFake{}

	if _, err := preparer.Prepare(context.Background(), complaintRows(
		domain.Complaint{ID: "9", Product: " ", Narrative: "lost card"},
	), chunks, nil); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if len(chunks.records) != 1 || chunks.records[0].Product != domain.UnknownProduct {
		t.Fatalf("expected Unknown product, got %+v", chunks.records)
	}
}

func TestCorpusPreparerPropagatesErrors(t *testing.T) {
	readErr := errors.New("bad row")
	rows := func(yield func(domain.Complaint, error) bool) {
		yield(domain.Complaint{}, readErr)
	}
	preparer := NewCorpusPreparer(windowChunkerFake{size: 10}, PrepareOptions{})
	if _, err := preparer.Prepare(context.Background(), rows, &chunkSinkFake{}, nil); !errors.Is(err, readErr) {
		t.Fatalf("expected row error, got %v", err)
	}

	sinkErr := errors.New("disk full")
	_, err := preparer.Prepare(context.Background(), complaintRows(
		domain.Complaint{ID: "1", Product: "Mortgage", Narrative: "escrow shortage"},
	), &chunkSinkFake{err: sinkErr}, nil)
	if !errors.Is(err, sinkErr) {
		t.Fatalf("expected sink error, got %v", err)
	}

	if _, err := NewCorpusPreparer(nil, PrepareOptions{}).Prepare(context.Background(), complaintRows(), &chunkSinkFake{}, nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input without chunker, got %v", err)
	}
}

func TestCorpusPreparerStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	preparer := NewCorpusPreparer(windowChunkerFake{size: 10}, PrepareOptions{})
	_, err := preparer.Prepare(ctx, complaintRows(
		domain.Complaint{ID: "1", Product: "Mortgage", Narrative: "escrow shortage"},
	), &chunkSinkFake{}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}
