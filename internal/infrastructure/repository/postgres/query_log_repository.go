package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
)

const schemaLockKey int64 = 2026101901

// QueryLogRepository stores answered questions for offline review.
type QueryLogRepository struct {
	db *sql.DB
}

func NewQueryLogRepository(db *sql.DB) *QueryLogRepository {
	return &QueryLogRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *QueryLogRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across worker replicas.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS complaint_queries (
	id TEXT PRIMARY KEY,
	question TEXT NOT NULL,
	product_filter TEXT NOT NULL DEFAULT '',
	result_count INTEGER NOT NULL,
	top_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	synthesis_status TEXT NOT NULL,
	duration_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_complaint_queries_created_at ON complaint_queries(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_complaint_queries_status ON complaint_queries(synthesis_status);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// SaveQueryEvent is idempotent on the event id so redelivered messages are harmless.
func (r *QueryLogRepository) SaveQueryEvent(ctx context.Context, event domain.QueryEvent) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO complaint_queries (
	id, question, product_filter, result_count, top_score, synthesis_status, duration_ms, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO NOTHING
`,
		event.ID, event.Question, event.ProductFilter, event.ResultCount, event.TopScore,
		string(event.SynthesisStatus), event.DurationMS, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert query event: %w", err)
	}
	return nil
}

func (r *QueryLogRepository) ListRecent(ctx context.Context, limit int) ([]domain.QueryEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, question, product_filter, result_count, top_score, synthesis_status, duration_ms, created_at
FROM complaint_queries
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()

	out := make([]domain.QueryEvent, 0, limit)
	for rows.Next() {
		var event domain.QueryEvent
		var status string
		if err := rows.Scan(
			&event.ID, &event.Question, &event.ProductFilter, &event.ResultCount, &event.TopScore,
			&status, &event.DurationMS, &event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan query event: %w", err)
		}
		event.SynthesisStatus = domain.SynthesisStatus(status)
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate query events: %w", err)
	}
	return out, nil
}
