package corpus

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"slices"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
)

const DefaultSampleSeed = 42

// reservoir keeps a uniform sample of k items from a stream of unknown length.
type reservoir[T any] struct {
	k     int
	seen  int
	rng   *rand.Rand
	items []T
}

func newReservoir[T any](k int, seed int64) (*reservoir[T], error) {
	if k <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "sample", fmt.Errorf("sample size must be positive, got %d", k))
	}
	return &reservoir[T]{
		k:     k,
		rng:   rand.New(rand.NewPCG(uint64(seed), uint64(seed))),
		items: make([]T, 0, min(k, 1<<16)),
	}, nil
}

func (r *reservoir[T]) offer(item T) {
	if r.seen < r.k {
		r.items = append(r.items, item)
	} else if j := r.rng.IntN(r.seen + 1); j < r.k {
		r.items[j] = item
	}
	r.seen++
}

// SampleLines samples k lines. The same seed over the same input yields the same sample.
// Returned lines always end in a newline so the sample can be written back verbatim.
func SampleLines(r io.Reader, k int, seed int64) ([]string, int, error) {
	res, err := newReservoir[string](k, seed)
	if err != nil {
		return nil, 0, err
	}
	br := bufio.NewReaderSize(r, 1<<20)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			if line[len(line)-1] != '\n' {
				line += "\n"
			}
			res.offer(line)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, res.seen, fmt.Errorf("read line %d: %w", res.seen+1, err)
		}
	}
	return res.items, res.seen, nil
}

type SampleStats struct {
	Seen int `json:"seen"`
	Kept int `json:"kept"`
}

// SampleCSV samples k records of a CSV export, header excluded, and writes the
// header followed by the sample to w. Quoted multi-line narratives stay whole.
func SampleCSV(r io.Reader, w io.Writer, k int, seed int64) (SampleStats, error) {
	var stats SampleStats
	res, err := newReservoir[[]string](k, seed)
	if err != nil {
		return stats, err
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = domain.WrapError(domain.ErrInvalidInput, "sample csv", errors.New("empty csv"))
		}
		return stats, err
	}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("read csv record %d: %w", res.seen+1, err)
		}
		res.offer(slices.Clone(record))
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return stats, fmt.Errorf("write sample header: %w", err)
	}
	if err := cw.WriteAll(res.items); err != nil {
		return stats, fmt.Errorf("write sample: %w", err)
	}
	stats.Seen, stats.Kept = res.seen, len(res.items)
	return stats, nil
}
