package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a report does not exist.
var ErrNotFound = errors.New("not found")

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	s.pool.Close()
}

// Migrate creates the report tables when they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS health_reports (
		id              UUID PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		type            TEXT NOT NULL,
		overall_score   INT NOT NULL,
		status          TEXT NOT NULL,
		degraded        BOOLEAN NOT NULL DEFAULT false,
		alert_count     INT NOT NULL DEFAULT 0,
		report          JSONB NOT NULL,
		analyzed_at     TIMESTAMPTZ NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS health_reports_conversation_idx
		ON health_reports (conversation_id, analyzed_at DESC)`,
	`CREATE TABLE IF NOT EXISTS response_events (
		id                 UUID PRIMARY KEY,
		report_id          UUID NOT NULL REFERENCES health_reports(id) ON DELETE CASCADE,
		from_id            TEXT NOT NULL,
		to_id              TEXT NOT NULL,
		elapsed_hours      DOUBLE PRECISION NOT NULL,
		urgency_level      TEXT NOT NULL,
		expected_max_hours DOUBLE PRECISION NOT NULL,
		timeliness_score   INT NOT NULL,
		is_delayed         BOOLEAN NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS stage_errors (
		id         UUID PRIMARY KEY,
		report_id  UUID NOT NULL REFERENCES health_reports(id) ON DELETE CASCADE,
		stage      TEXT NOT NULL,
		message    TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}
