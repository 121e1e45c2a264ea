// Package flat implements exact nearest-neighbor search by squared L2 distance.
package flat

import (
	"container/heap"
	"context"
	"fmt"
	"math"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
)

type Index struct {
	dim     int
	count   int
	vectors []float32
}

// New wraps row-major vectors of the given dimension. The slice is not copied.
func New(dim int, vectors []float32) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("flat index: dimension must be positive, got %d", dim)
	}
	if len(vectors)%dim != 0 {
		return nil, fmt.Errorf("flat index: %d values are not a multiple of dimension %d", len(vectors), dim)
	}
	return &Index{
		dim:     dim,
		count:   len(vectors) / dim,
		vectors: vectors,
	}, nil
}

func (x *Index) Len() int       { return x.count }
func (x *Index) Dimension() int { return x.dim }

// Row returns the vector stored at ordinal i.
func (x *Index) Row(i int) []float32 {
	return x.vectors[i*x.dim : (i+1)*x.dim]
}

// Search returns exactly k neighbors ascending by distance. Ties are broken by
// ordinal and slots beyond the index size are padded with domain.NoNeighbor.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]domain.Neighbor, error) {
	if k <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "flat search", fmt.Errorf("k must be positive, got %d", k))
	}
	if len(query) != x.dim {
		return nil, domain.WrapError(domain.ErrEncoderMismatch, "flat search", fmt.Errorf("query dimension %d, index dimension %d", len(query), x.dim))
	}

	h := make(maxHeap, 0, min(k, x.count))
	for i := 0; i < x.count; i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		d := squaredL2(query, x.vectors[i*x.dim:(i+1)*x.dim])
		cand := domain.Neighbor{Ordinal: int64(i), Distance: d}
		if len(h) < k {
			heap.Push(&h, cand)
			continue
		}
		if worse(h[0], cand) {
			h[0] = cand
			heap.Fix(&h, 0)
		}
	}

	out := make([]domain.Neighbor, k)
	for i := len(h) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(domain.Neighbor)
	}
	for i := x.count; i < k; i++ {
		out[i] = domain.Neighbor{Ordinal: domain.NoNeighbor, Distance: math.MaxFloat32}
	}
	return out, nil
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// worse reports whether a ranks after b.
func worse(a, b domain.Neighbor) bool {
	if a.Distance != b.Distance {
		return a.Distance > b.Distance
	}
	return a.Ordinal > b.Ordinal
}

// maxHeap keeps the worst retained candidate at the root.
type maxHeap []domain.Neighbor

func (h maxHeap) Len() int           { return len(h) }
func (h maxHeap) Less(i, j int) bool { return worse(h[i], h[j]) }
func (h maxHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *maxHeap) Push(x any) { *h = append(*h, x.(domain.Neighbor)) }

func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
