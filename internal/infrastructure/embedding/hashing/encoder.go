// Package hashing provides a deterministic, dependency-free text encoder.
// Tokens are hashed into a fixed number of signed buckets, weighted with
// BM25-style term-frequency saturation and L2-normalized.
package hashing

import (
	"context"
	"hash/fnv"
	"math"
	"sort"
	"unicode"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
)

const (
	Provider     = "hashing"
	Model        = "fnv-bm25"
	saturationK  = 1.2
	bigramWeight = 0.5
	defaultDim   = 384
)

type Encoder struct {
	dim int
}

func New(dimension int) *Encoder {
	if dimension <= 0 {
		dimension = defaultDim
	}
	return &Encoder{dim: dimension}
}

func (e *Encoder) Identity() domain.EncoderIdentity {
	return domain.EncoderIdentity{Provider: Provider, Model: Model, Dimension: e.dim}
}

func (e *Encoder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, e.encode(text))
	}
	return out, nil
}

func (e *Encoder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.encode(text), nil
}

// encode maps empty or token-free text to the zero vector.
func (e *Encoder) encode(text string) []float32 {
	vec := make([]float32, e.dim)
	tokens := tokenizeAlphaNum(text)
	if len(tokens) == 0 {
		return vec
	}

	termFreq := make(map[string]float64, len(tokens)*2)
	for i, token := range tokens {
		termFreq[token] += 1.0
		if i > 0 {
			termFreq[tokens[i-1]+" "+token] += bigramWeight
		}
	}

	terms := make([]string, 0, len(termFreq))
	for term := range termFreq {
		terms = append(terms, term)
	}
	// Fixed accumulation order keeps float sums reproducible.
	sort.Strings(terms)

	for _, term := range terms {
		tf := termFreq[term]
		h := hashToken(term)
		bucket := int(h % uint32(e.dim))
		sign := float32(1)
		if h&(1<<31) != 0 {
			sign = -1
		}
		weight := (tf * (saturationK + 1.0)) / (tf + saturationK)
		vec[bucket] += sign * float32(weight)
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

func hashToken(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return h.Sum32()
}

func tokenizeAlphaNum(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b []rune
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b = append(b, r)
			continue
		}
		if len(b) > 0 {
			out = append(out, string(b))
			b = b[:0]
		}
	}
	if len(b) > 0 {
		out = append(out, string(b))
	}
	return out
}
