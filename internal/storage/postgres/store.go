// Package postgres provides the Postgres-backed Store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/boardwatch/boardwatch/internal/scrape"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Store persists postings, attempts, and health in Postgres. Merge
// rewrites a source's posting set inside one transaction, so readers
// never observe a half-merged source.
type Store struct {
	pool dbPool
}

// New connects a Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for
// testing).
func NewWithPool(pool dbPool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const postingColumns = `key, source_id, title, company, location, url, first_seen, last_seen, open, misses, posted_at`

// PostingsBySource implements scrape.Store.
func (s *Store) PostingsBySource(ctx context.Context, sourceID string) ([]scrape.JobPosting, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+postingColumns+` FROM job_postings WHERE source_id = $1 ORDER BY first_seen DESC, key`,
		sourceID)
	if err != nil {
		return nil, fmt.Errorf("query postings for %s: %w", sourceID, err)
	}
	return scanPostings(rows)
}

// AllPostings implements scrape.Store, newest first.
func (s *Store) AllPostings(ctx context.Context) ([]scrape.JobPosting, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+postingColumns+` FROM job_postings ORDER BY open DESC, first_seen DESC, key`)
	if err != nil {
		return nil, fmt.Errorf("query postings: %w", err)
	}
	return scanPostings(rows)
}

func scanPostings(rows pgx.Rows) ([]scrape.JobPosting, error) {
	defer rows.Close()
	var out []scrape.JobPosting
	for rows.Next() {
		var p scrape.JobPosting
		if err := rows.Scan(&p.Key, &p.SourceID, &p.Title, &p.Company, &p.Location, &p.URL,
			&p.FirstSeen, &p.LastSeen, &p.Open, &p.Misses, &p.PostedAt); err != nil {
			return nil, fmt.Errorf("scan posting: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read postings: %w", err)
	}
	return out, nil
}

// Merge implements scrape.Store. The source's rows are replaced
// wholesale inside one transaction.
func (s *Store) Merge(ctx context.Context, sourceID string, postings []scrape.JobPosting, _ scrape.MergeStats) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin merge for %s: %w", sourceID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM job_postings WHERE source_id = $1`, sourceID); err != nil {
		return fmt.Errorf("clear postings for %s: %w", sourceID, err)
	}
	for _, p := range postings {
		if _, err := tx.Exec(ctx,
			`INSERT INTO job_postings (`+postingColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			p.Key, p.SourceID, p.Title, p.Company, p.Location, p.URL,
			p.FirstSeen, p.LastSeen, p.Open, p.Misses, p.PostedAt); err != nil {
			return fmt.Errorf("insert posting %s: %w", p.Key, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit merge for %s: %w", sourceID, err)
	}
	return nil
}

// AppendAttempt implements scrape.Store.
func (s *Store) AppendAttempt(ctx context.Context, attempt scrape.ScrapeAttempt) error {
	if attempt.ID == "" {
		return fmt.Errorf("attempt id is required")
	}
	warnings, err := json.Marshal(attempt.Warnings)
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO scrape_attempts (id, source_id, at, outcome, postings, path, rendered, pages, warnings, error_text)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		attempt.ID, attempt.SourceID, attempt.At, string(attempt.Outcome), attempt.Postings,
		attempt.Path, attempt.Rendered, attempt.Pages, warnings, attempt.ErrorText); err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// Attempts implements scrape.Store, newest first.
func (s *Store) Attempts(ctx context.Context, sourceID string, limit int) ([]scrape.ScrapeAttempt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, source_id, at, outcome, postings, path, rendered, pages, warnings, error_text
		FROM scrape_attempts WHERE source_id = $1 ORDER BY at DESC LIMIT $2`,
		sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("query attempts for %s: %w", sourceID, err)
	}
	defer rows.Close()

	var out []scrape.ScrapeAttempt
	for rows.Next() {
		var (
			a        scrape.ScrapeAttempt
			outcome  string
			warnings []byte
		)
		if err := rows.Scan(&a.ID, &a.SourceID, &a.At, &outcome, &a.Postings,
			&a.Path, &a.Rendered, &a.Pages, &warnings, &a.ErrorText); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Outcome = scrape.AttemptOutcome(outcome)
		if len(warnings) > 0 {
			if err := json.Unmarshal(warnings, &a.Warnings); err != nil {
				return nil, fmt.Errorf("unmarshal warnings: %w", err)
			}
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read attempts: %w", err)
	}
	return out, nil
}

// SetHealth implements scrape.Store.
func (s *Store) SetHealth(ctx context.Context, state scrape.HealthState) error {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO health_states (source_id, status, consecutive_failures, consecutive_empties, last_success, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (source_id) DO UPDATE SET
			status = EXCLUDED.status,
			consecutive_failures = EXCLUDED.consecutive_failures,
			consecutive_empties = EXCLUDED.consecutive_empties,
			last_success = EXCLUDED.last_success,
			updated_at = EXCLUDED.updated_at`,
		state.SourceID, string(state.Status), state.ConsecutiveFailures,
		state.ConsecutiveEmpties, state.LastSuccess, state.UpdatedAt); err != nil {
		return fmt.Errorf("upsert health for %s: %w", state.SourceID, err)
	}
	return nil
}

// Health implements scrape.Store.
func (s *Store) Health(ctx context.Context, sourceID string) (scrape.HealthState, error) {
	var (
		state  scrape.HealthState
		status string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT source_id, status, consecutive_failures, consecutive_empties, last_success, updated_at
		FROM health_states WHERE source_id = $1`,
		sourceID).Scan(&state.SourceID, &status, &state.ConsecutiveFailures,
		&state.ConsecutiveEmpties, &state.LastSuccess, &state.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return scrape.HealthState{}, scrape.ErrNotFound
	}
	if err != nil {
		return scrape.HealthState{}, fmt.Errorf("query health for %s: %w", sourceID, err)
	}
	state.Status = scrape.HealthStatus(status)
	return state, nil
}
