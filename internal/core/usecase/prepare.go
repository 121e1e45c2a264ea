package usecase

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
	"github.com/kirillkom/complaint-analyst/internal/core/ports"
)

type PrepareOptions struct {
	// MinTextChars drops narratives whose cleaned length is not above it.
	MinTextChars int
	// AllProducts disables the target product filter.
	AllProducts bool
}

type PrepareStats struct {
	Rows             int `json:"rows"`
	OffTarget        int `json:"off_target"`
	MissingNarrative int `json:"missing_narrative"`
	TooShort         int `json:"too_short"`
	Kept             int `json:"kept"`
	Chunks           int `json:"chunks"`
}

// CorpusPreparer cleans raw complaint rows and windows them into chunk records.
type CorpusPreparer struct {
	chunker     ports.Chunker
	minChars    int
	allProducts bool
}

func NewCorpusPreparer(chunker ports.Chunker, opts PrepareOptions) *CorpusPreparer {
	if opts.MinTextChars < 0 {
		opts.MinTextChars = 0
	}
	return &CorpusPreparer{
		chunker:     chunker,
		minChars:    opts.MinTextChars,
		allProducts: opts.AllProducts,
	}
}

// Prepare streams rows through cleaning and chunking. cleaned may be nil.
func (uc *CorpusPreparer) Prepare(
	ctx context.Context,
	rows iter.Seq2[domain.Complaint, error],
	chunks ports.ChunkSink,
	cleaned ports.ComplaintSink,
) (PrepareStats, error) {
	var stats PrepareStats
	if uc.chunker == nil || chunks == nil {
		return stats, domain.WrapError(domain.ErrInvalidInput, "prepare corpus", errors.New("chunker and chunk sink are required"))
	}

	for row, err := range rows {
		if err != nil {
			return stats, fmt.Errorf("read complaint row %d: %w", stats.Rows+1, err)
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Rows++

		complaint, reason := uc.clean(row)
		switch reason {
		case dropOffTarget:
			stats.OffTarget++
			continue
		case dropMissingNarrative:
			stats.MissingNarrative++
			continue
		case dropTooShort:
			stats.TooShort++
			continue
		}
		stats.Kept++

		if cleaned != nil {
			if err := cleaned.WriteComplaint(complaint); err != nil {
				return stats, fmt.Errorf("write cleaned complaint %s: %w", complaint.ID, err)
			}
		}
		for _, rec := range uc.chunker.SplitComplaint(complaint) {
			if err := chunks.WriteChunk(rec); err != nil {
				return stats, fmt.Errorf("write chunk %s: %w", rec.ChunkID, err)
			}
			stats.Chunks++
		}
	}

	slog.Info("corpus_prepared",
		"rows", stats.Rows,
		"kept", stats.Kept,
		"chunks", stats.Chunks,
		"off_target", stats.OffTarget,
		"missing_narrative", stats.MissingNarrative,
		"too_short", stats.TooShort,
	)
	return stats, nil
}

type dropReason int

const (
	keepRow dropReason = iota
	dropOffTarget
	dropMissingNarrative
	dropTooShort
)

func (uc *CorpusPreparer) clean(row domain.Complaint) (domain.Complaint, dropReason) {
	if !uc.allProducts && !domain.IsTargetProduct(row.Product) {
		return row, dropOffTarget
	}
	if row.Narrative == "" {
		return row, dropMissingNarrative
	}
	text := strings.TrimSpace(strings.ToLower(row.Narrative))
	if utf8.RuneCountInString(text) <= uc.minChars {
		return row, dropTooShort
	}
	product := strings.TrimSpace(row.Product)
	if product == "" {
		product = domain.UnknownProduct
	}
	return domain.Complaint{ID: strings.TrimSpace(row.ID), Product: product, Narrative: text}, keepRow
}
