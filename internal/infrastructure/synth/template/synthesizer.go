package template

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
)

const (
	maxExcerpts     = 3
	maxExcerptRunes = 100
)

// Synthesizer renders a deterministic evidence digest without a language model.
type Synthesizer struct{}

func New() *Synthesizer {
	return &Synthesizer{}
}

func (s *Synthesizer) GenerateAnswer(_ context.Context, question string, chunks []domain.SearchResult) (string, error) {
	return Render(question, chunks), nil
}

// StreamAnswer yields the rendered answer word by word; the fragments concatenate to GenerateAnswer's output.
func (s *Synthesizer) StreamAnswer(ctx context.Context, question string, chunks []domain.SearchResult) iter.Seq2[string, error] {
	text := Render(question, chunks)
	return func(yield func(string, error) bool) {
		for _, word := range strings.SplitAfter(text, " ") {
			if word == "" {
				continue
			}
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			if !yield(word, nil) {
				return
			}
		}
	}
}

func Render(question string, chunks []domain.SearchResult) string {
	if len(chunks) == 0 {
		return domain.NoEvidenceMessage
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Analysis based on %d complaints:**\n\n", len(chunks))
	fmt.Fprintf(&b, "Relevant to products: %s\n\n", strings.Join(distinctProducts(chunks), ", "))
	b.WriteString("**Key Insights (Mock Generated):**\n")
	fmt.Fprintf(&b, "Users are reporting issues related to '%s'. \n", question)
	b.WriteString("Common themes include:\n")
	for _, chunk := range chunks[:min(maxExcerpts, len(chunks))] {
		fmt.Fprintf(&b, "- \"%s...\"\n", truncateRunes(chunk.Text, maxExcerptRunes))
	}
	b.WriteString("\n*Note: This is a placeholder response. Connect an LLM to generate full synthesis.*")
	return b.String()
}

func distinctProducts(chunks []domain.SearchResult) []string {
	seen := make(map[string]struct{}, len(chunks))
	out := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if _, ok := seen[chunk.Product]; ok {
			continue
		}
		seen[chunk.Product] = struct{}{}
		out = append(out, chunk.Product)
	}
	return out
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
