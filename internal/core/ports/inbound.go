package ports

import (
	"context"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
)

// ComplaintSearcher is the inbound contract for ranked excerpt retrieval.
type ComplaintSearcher interface {
	Search(ctx context.Context, query string, topK int, productFilter string) ([]domain.SearchResult, error)
}

// ComplaintQueryService is the inbound contract for question answering over complaints.
type ComplaintQueryService interface {
	Query(ctx context.Context, question, productFilter string) (*domain.Answer, error)
	QueryStream(ctx context.Context, question, productFilter string) (*domain.AnswerStream, error)
}

// QueryEventRecorder is the inbound contract for asynchronous query log persistence.
type QueryEventRecorder interface {
	Record(ctx context.Context, event domain.QueryEvent) error
}
