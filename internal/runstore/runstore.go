// Package runstore persists ingestion run history to Postgres.
package runstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openintegrate/ingest-core/internal/apispec"
)

// Run is one recorded ingestion attempt.
type Run struct {
	RunID                string          `json:"run_id"`
	SpecTitle            string          `json:"spec_title"`
	Status               string          `json:"status"`
	TotalRecordsIngested int             `json:"total_records_ingested"`
	Report               json.RawMessage `json:"report"`
	CreatedAt            time.Time       `json:"created_at"`
}

// Store records and lists ingestion runs.
type Store struct {
	db *pgxpool.Pool
}

// Open connects to Postgres and ensures the run table exists.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}
	db, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect run store: %w", err)
	}
	s := &Store{db: db}
	if err := s.ensureTable(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS ingestion_runs (
  run_id                 text PRIMARY KEY,
  spec_title             text NOT NULL DEFAULT '',
  status                 text NOT NULL,
  total_records_ingested integer NOT NULL DEFAULT 0,
  report                 jsonb,
  created_at             timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS ingestion_runs_created_idx ON ingestion_runs (created_at DESC);
`
	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure ingestion_runs table: %w", err)
	}
	return nil
}

// RecordRun stores the outcome of one ingestion. A nil *Store is a no-op so
// callers without DATABASE_URL skip recording.
func (s *Store) RecordRun(ctx context.Context, runID, specTitle, status string, report any) error {
	if s == nil {
		return nil
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode run report: %w", err)
	}
	total := 0
	if summary, ok := report.(*apispec.Summary); ok && summary != nil {
		total = summary.TotalRecordsIngested
	}
	_, err = s.db.Exec(ctx, `
INSERT INTO ingestion_runs (run_id, spec_title, status, total_records_ingested, report)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (run_id) DO UPDATE SET
  status = EXCLUDED.status,
  total_records_ingested = EXCLUDED.total_records_ingested,
  report = EXCLUDED.report
`, runID, specTitle, status, total, payload)
	if err != nil {
		return fmt.Errorf("record run %s: %w", runID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if s == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
SELECT run_id, spec_title, status, total_records_ingested, report, created_at
FROM ingestion_runs
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.RunID, &r.SpecTitle, &r.Status, &r.TotalRecordsIngested, &r.Report, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s != nil && s.db != nil {
		s.db.Close()
	}
}
