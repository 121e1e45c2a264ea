package llm

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"strings"
	"unicode"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
	"github.com/kirillkom/complaint-analyst/internal/core/ports"
)

// DefaultSampling bounds generation for the small instruct models this runs against.
var DefaultSampling = domain.SamplingOptions{
	MaxTokens:   256,
	Temperature: 0.7,
	TopK:        50,
	TopP:        0.95,
}

// Synthesizer answers from retrieved excerpts through a text completer.
type Synthesizer struct {
	completer ports.Completer
	sampling  domain.SamplingOptions
	name      string
}

func New(name string, completer ports.Completer, sampling domain.SamplingOptions) *Synthesizer {
	if sampling.MaxTokens <= 0 {
		sampling.MaxTokens = DefaultSampling.MaxTokens
	}
	return &Synthesizer{completer: completer, sampling: sampling, name: name}
}

func (s *Synthesizer) GenerateAnswer(ctx context.Context, question string, chunks []domain.SearchResult) (string, error) {
	if len(chunks) == 0 {
		return domain.NoEvidenceMessage, nil
	}

	out, err := s.completer.Complete(ctx, buildAnswerPrompt(question, chunks), s.sampling)
	if err != nil {
		return "", domain.WrapError(domain.ErrSynthesisUnavailable, "generate answer", err)
	}
	answer := strings.TrimSpace(out)
	if answer == "" {
		return "", domain.WrapError(domain.ErrFormatMismatch, "generate answer", errors.New(s.name+" returned an empty continuation"))
	}
	return answer, nil
}

// StreamAnswer streams continuation fragments when the completer supports it,
// otherwise it yields the blocking answer once.
func (s *Synthesizer) StreamAnswer(ctx context.Context, question string, chunks []domain.SearchResult) iter.Seq2[string, error] {
	streamer, ok := s.completer.(ports.StreamingCompleter)
	if !ok || len(chunks) == 0 {
		return func(yield func(string, error) bool) {
			answer, err := s.GenerateAnswer(ctx, question, chunks)
			yield(answer, err)
		}
	}

	prompt := buildAnswerPrompt(question, chunks)
	return func(yield func(string, error) bool) {
		started := false
		for fragment, err := range streamer.CompleteStream(ctx, prompt, s.sampling) {
			if err != nil {
				yield("", domain.WrapError(domain.ErrSynthesisUnavailable, "stream answer", err))
				return
			}
			if !started {
				fragment = strings.TrimLeftFunc(fragment, unicode.IsSpace)
				if fragment == "" {
					continue
				}
				started = true
			}
			if !yield(fragment, nil) {
				return
			}
		}
		if !started {
			slog.Warn("synthesis_empty_stream", "provider", s.name)
			yield("", domain.WrapError(domain.ErrFormatMismatch, "stream answer", errors.New(s.name+" streamed no content")))
		}
	}
}
