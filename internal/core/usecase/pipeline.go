package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
	"github.com/kirillkom/complaint-analyst/internal/core/ports"
)

const defaultPipelineTopK = 5

var errStreamConsumed = errors.New("answer stream already consumed")

// Pipeline answers questions by retrieving evidence and handing it to a synthesizer.
// A nil synthesizer or a failing one degrades to evidence-only answers.
type Pipeline struct {
	searcher    ports.ComplaintSearcher
	synthesizer ports.AnswerSynthesizer
	events      ports.MessageQueue
	topK        int
}

type PipelineOptions struct {
	TopK   int
	Events ports.MessageQueue
}

func NewPipeline(searcher ports.ComplaintSearcher, synthesizer ports.AnswerSynthesizer, opts PipelineOptions) *Pipeline {
	topK := opts.TopK
	if topK <= 0 {
		topK = defaultPipelineTopK
	}
	return &Pipeline{
		searcher:    searcher,
		synthesizer: synthesizer,
		events:      opts.Events,
		topK:        topK,
	}
}

func (p *Pipeline) Query(ctx context.Context, question, productFilter string) (*domain.Answer, error) {
	started := time.Now()
	filter := domain.NormalizeProductFilter(productFilter)

	sources, err := p.searcher.Search(ctx, question, p.topK, filter)
	if err != nil {
		return nil, fmt.Errorf("retrieve complaints: %w", err)
	}

	text, status, err := p.synthesize(ctx, question, sources)
	if err != nil {
		return nil, err
	}

	answer := &domain.Answer{
		Answer:          text,
		SourceDocuments: sources,
		SynthesisStatus: status,
	}
	p.publish(ctx, question, filter, sources, status, time.Since(started))
	return answer, nil
}

// QueryStream retrieves eagerly and synthesizes lazily. The returned fragments
// can be ranged over once.
func (p *Pipeline) QueryStream(ctx context.Context, question, productFilter string) (*domain.AnswerStream, error) {
	started := time.Now()
	filter := domain.NormalizeProductFilter(productFilter)

	sources, err := p.searcher.Search(ctx, question, p.topK, filter)
	if err != nil {
		return nil, fmt.Errorf("retrieve complaints: %w", err)
	}

	status := domain.SynthesisOK
	switch {
	case p.synthesizer == nil:
		status = domain.SynthesisUnavailable
	case len(sources) == 0:
		status = domain.SynthesisNoEvidence
	}

	var consumed atomic.Bool
	fragments := func(yield func(string, error) bool) {
		if !consumed.CompareAndSwap(false, true) {
			yield("", errStreamConsumed)
			return
		}
		final := p.streamFragments(ctx, question, sources, yield)
		p.publish(ctx, question, filter, sources, final, time.Since(started))
	}

	return &domain.AnswerStream{
		SourceDocuments: sources,
		SynthesisStatus: status,
		Fragments:       fragments,
	}, nil
}

func (p *Pipeline) synthesize(ctx context.Context, question string, sources []domain.SearchResult) (string, domain.SynthesisStatus, error) {
	if p.synthesizer == nil {
		return domain.SynthesisUnavailableMessage, domain.SynthesisUnavailable, nil
	}

	text, err := p.synthesizer.GenerateAnswer(ctx, question, sources)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", "", ctxErr
		}
		slog.Warn("synthesis_degraded", "error", err, "sources", len(sources))
		return domain.SynthesisUnavailableMessage, domain.SynthesisUnavailable, nil
	}
	return settleAnswer(text, sources)
}

// settleAnswer guards the non-empty answer contract for synthesizers that return blank text.
func settleAnswer(text string, sources []domain.SearchResult) (string, domain.SynthesisStatus, error) {
	if strings.TrimSpace(text) == "" {
		if len(sources) == 0 {
			return domain.NoEvidenceMessage, domain.SynthesisNoEvidence, nil
		}
		slog.Warn("synthesis_degraded", "error", domain.ErrFormatMismatch, "sources", len(sources))
		return domain.SynthesisUnavailableMessage, domain.SynthesisUnavailable, nil
	}
	if len(sources) == 0 {
		return text, domain.SynthesisNoEvidence, nil
	}
	return text, domain.SynthesisOK, nil
}

// streamFragments yields the synthesized answer and reports the final status.
func (p *Pipeline) streamFragments(
	ctx context.Context,
	question string,
	sources []domain.SearchResult,
	yield func(string, error) bool,
) domain.SynthesisStatus {
	streamer, ok := p.synthesizer.(ports.StreamingSynthesizer)
	if !ok {
		text, status, err := p.synthesize(ctx, question, sources)
		if err != nil {
			yield("", err)
			return status
		}
		yield(text, nil)
		return status
	}

	emitted := false
	for fragment, err := range streamer.StreamAnswer(ctx, question, sources) {
		if err != nil {
			if emitted || ctx.Err() != nil {
				yield("", err)
				return domain.SynthesisUnavailable
			}
			slog.Warn("synthesis_degraded", "error", err, "sources", len(sources))
			yield(domain.SynthesisUnavailableMessage, nil)
			return domain.SynthesisUnavailable
		}
		if fragment == "" {
			continue
		}
		emitted = true
		if !yield(fragment, nil) {
			return domain.SynthesisOK
		}
	}
	if !emitted {
		text, status, _ := settleAnswer("", sources)
		yield(text, nil)
		return status
	}
	if len(sources) == 0 {
		return domain.SynthesisNoEvidence
	}
	return domain.SynthesisOK
}

func (p *Pipeline) publish(
	ctx context.Context,
	question, filter string,
	sources []domain.SearchResult,
	status domain.SynthesisStatus,
	elapsed time.Duration,
) {
	if p.events == nil {
		return
	}
	event := domain.QueryEvent{
		ID:              uuid.NewString(),
		Question:        question,
		ProductFilter:   filter,
		ResultCount:     len(sources),
		SynthesisStatus: status,
		DurationMS:      float64(elapsed.Microseconds()) / 1000.0,
		CreatedAt:       time.Now().UTC(),
	}
	if len(sources) > 0 {
		event.TopScore = sources[0].Score
	}
	if err := p.events.PublishQueryEvent(context.WithoutCancel(ctx), event); err != nil {
		slog.Warn("query_event_publish_failed", "event_id", event.ID, "error", err)
	}
}
