package storage

import (
	"context"
	"fmt"

	"github.com/user/animerank-crawler/internal/domain"
)

const failuresSchema = `CREATE TABLE IF NOT EXISTS failed_links (
	link             TEXT PRIMARY KEY,
	stage            TEXT NOT NULL,
	failure_reason   TEXT NOT NULL,
	http_status_code INTEGER NOT NULL DEFAULT 0,
	last_attempt_at  TIMESTAMPTZ NOT NULL,
	retry_count      INTEGER NOT NULL DEFAULT 1
)`

// RecordFailure creates or updates the failure row for a link.
// It increments retry_count on conflict.
func (s *PostgresStore) RecordFailure(ctx context.Context, f domain.FailedLink) error {
	query := `
		INSERT INTO failed_links (link, stage, failure_reason, http_status_code, last_attempt_at, retry_count)
		VALUES ($1, $2, $3, $4, $5, 1)
		ON CONFLICT (link) DO UPDATE SET
			stage = EXCLUDED.stage,
			failure_reason = EXCLUDED.failure_reason,
			http_status_code = EXCLUDED.http_status_code,
			last_attempt_at = EXCLUDED.last_attempt_at,
			retry_count = failed_links.retry_count + 1;
	`
	_, err := s.db.Exec(ctx, query, string(f.Link), f.Stage, f.Reason, f.StatusCode, f.LastAttemptAt)
	if err != nil {
		return fmt.Errorf("record failure for %s: %w", f.Link, err)
	}
	return nil
}

// ClearFailure removes a link's failure row, typically after it was persisted.
func (s *PostgresStore) ClearFailure(ctx context.Context, link domain.Link) error {
	_, err := s.db.Exec(ctx, `DELETE FROM failed_links WHERE link = $1;`, string(link))
	return err
}

// ListFailures returns the most recent failures first.
func (s *PostgresStore) ListFailures(ctx context.Context, limit int) ([]domain.FailedLink, error) {
	query := `
		SELECT link, stage, failure_reason, http_status_code, last_attempt_at, retry_count
		FROM failed_links
		ORDER BY last_attempt_at DESC
		LIMIT $1;
	`
	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.FailedLink
	for rows.Next() {
		var (
			f    domain.FailedLink
			link string
		)
		if err := rows.Scan(&link, &f.Stage, &f.Reason, &f.StatusCode, &f.LastAttemptAt, &f.RetryCount); err != nil {
			return nil, err
		}
		f.Link = domain.Link(link)
		out = append(out, f)
	}
	return out, rows.Err()
}
