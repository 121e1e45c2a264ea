package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
	"github.com/kirillkom/complaint-analyst/internal/core/ports"
)

// QueryLogRecorder persists query events consumed by the worker.
type QueryLogRecorder struct {
	repo ports.QueryLogRepository
}

func NewQueryLogRecorder(repo ports.QueryLogRepository) *QueryLogRecorder {
	return &QueryLogRecorder{repo: repo}
}

func (uc *QueryLogRecorder) Record(ctx context.Context, event domain.QueryEvent) error {
	if strings.TrimSpace(event.ID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "record query event", errors.New("event id is required"))
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.SynthesisStatus == "" {
		event.SynthesisStatus = domain.SynthesisOK
	}

	if err := uc.repo.SaveQueryEvent(ctx, event); err != nil {
		return fmt.Errorf("save query event %s: %w", event.ID, err)
	}
	slog.Debug("query_event_recorded", "event_id", event.ID, "result_count", event.ResultCount)
	return nil
}

// Recent returns the latest persisted events, newest first.
func (uc *QueryLogRecorder) Recent(ctx context.Context, limit int) ([]domain.QueryEvent, error) {
	if limit <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list query events", errors.New("limit must be positive"))
	}
	events, err := uc.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list query events: %w", err)
	}
	return events, nil
}
