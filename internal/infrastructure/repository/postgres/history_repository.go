// Package postgres persists the ask audit trail.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/toolscout/agent-tools-rag/internal/core/domain"
)

type HistoryRepository struct {
	db *sql.DB
}

func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
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

func (r *HistoryRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082401)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS ask_history (
	id TEXT PRIMARY KEY,
	endpoint TEXT NOT NULL,
	provider TEXT NOT NULL,
	model TEXT,
	dedup_mode TEXT,
	source_count INTEGER NOT NULL DEFAULT 0,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ask_history_created_at ON ask_history(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_ask_history_provider ON ask_history(provider);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *HistoryRepository) Record(ctx context.Context, record domain.AskRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO ask_history (
	id, endpoint, provider, model, dedup_mode, source_count, duration_ms, status, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		record.ID, record.Endpoint, record.Provider, record.Model, record.Mode,
		record.SourceCount, record.DurationMS, record.Status, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert ask record: %w", err)
	}
	return nil
}

// Recent returns the newest records, newest first. Used by the ops endpoint.
func (r *HistoryRepository) Recent(ctx context.Context, limit int) ([]domain.AskRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, endpoint, provider, model, dedup_mode, source_count, duration_ms, status
FROM ask_history
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query ask history: %w", err)
	}
	defer rows.Close()

	var out []domain.AskRecord
	for rows.Next() {
		var record domain.AskRecord
		if err := rows.Scan(
			&record.ID, &record.Endpoint, &record.Provider, &record.Model,
			&record.Mode, &record.SourceCount, &record.DurationMS, &record.Status,
		); err != nil {
			return nil, fmt.Errorf("scan ask record: %w", err)
		}
		out = append(out, record)
	}
	return out, rows.Err()
}
