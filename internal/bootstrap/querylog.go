package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirillkom/complaint-analyst/internal/config"
	"github.com/kirillkom/complaint-analyst/internal/core/domain"
	"github.com/kirillkom/complaint-analyst/internal/core/usecase"
	"github.com/kirillkom/complaint-analyst/internal/infrastructure/queue/nats"
	"github.com/kirillkom/complaint-analyst/internal/infrastructure/repository/postgres"
)

// QueryLog wires the query event consumer side: NATS in, Postgres out.
// Queue is nil when subscribe is false.
type QueryLog struct {
	Recorder *usecase.QueryLogRecorder
	Queue    *nats.Queue

	closeFn func()
}

func NewQueryLog(ctx context.Context, cfg config.Config, subscribe bool) (*QueryLog, error) {
	if cfg.PostgresDSN == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "init query log", errors.New("POSTGRES_DSN is required"))
	}
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewQueryLogRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	ql := &QueryLog{
		Recorder: usecase.NewQueryLogRecorder(repo),
		closeFn:  func() { _ = db.Close() },
	}
	if !subscribe {
		return ql, nil
	}

	if cfg.NATSURL == "" {
		_ = db.Close()
		return nil, domain.WrapError(domain.ErrInvalidInput, "init query log", errors.New("NATS_URL is required"))
	}
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: NewExecutor(cfg),
		ClientName:         "complaint-analyst-worker",
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	ql.Queue = queue
	ql.closeFn = func() {
		queue.Close()
		_ = db.Close()
	}
	return ql, nil
}

func (q *QueryLog) Close() {
	if q.closeFn != nil {
		q.closeFn()
	}
}
