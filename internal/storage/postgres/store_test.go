package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/boardwatch/boardwatch/internal/scrape"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewWithPool(mock)
	require.NoError(t, err)
	return store, mock
}

func TestMergeReplacesSourceRowsInOneTransaction(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Unix(1750000000, 0).UTC()
	postings := []scrape.JobPosting{{
		Key:       "k1",
		SourceID:  "acme",
		Title:     "Engineer",
		Company:   "acme",
		Location:  "Berlin",
		URL:       "https://acme.example/jobs/1",
		FirstSeen: now,
		LastSeen:  now,
		Open:      true,
	}}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM job_postings").
		WithArgs("acme").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("INSERT INTO job_postings").
		WithArgs("k1", "acme", "Engineer", "acme", "Berlin", "https://acme.example/jobs/1",
			now, now, true, 0, (*time.Time)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, store.Merge(context.Background(), "acme", postings, scrape.MergeStats{Inserted: 1}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMergeRollsBackOnInsertFailure(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM job_postings").
		WithArgs("acme").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO job_postings").
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	err := store.Merge(context.Background(), "acme", []scrape.JobPosting{{Key: "k1"}}, scrape.MergeStats{})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendAttemptInsertsRow(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	at := time.Unix(1750000000, 0).UTC()
	attempt := scrape.ScrapeAttempt{
		ID:       "uuid-1",
		SourceID: "acme",
		At:       at,
		Outcome:  scrape.OutcomeSuccess,
		Postings: 12,
		Path:     "adapter",
		Rendered: true,
		Pages:    2,
		Warnings: []string{"dropped one"},
	}

	mock.ExpectExec("INSERT INTO scrape_attempts").
		WithArgs("uuid-1", "acme", at, "success", 12, "adapter", true, 2,
			[]byte(`["dropped one"]`), "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.AppendAttempt(context.Background(), attempt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendAttemptRequiresID(t *testing.T) {
	t.Parallel()

	store, _ := newMockStore(t)
	err := store.AppendAttempt(context.Background(), scrape.ScrapeAttempt{SourceID: "acme"})
	require.Error(t, err)
}

func TestPostingsBySourceScansRows(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Unix(1750000000, 0).UTC()

	rows := pgxmock.NewRows([]string{
		"key", "source_id", "title", "company", "location", "url",
		"first_seen", "last_seen", "open", "misses", "posted_at",
	}).AddRow("k1", "acme", "Engineer", "acme", "Berlin", "https://acme.example/jobs/1",
		now, now, true, 1, (*time.Time)(nil))

	mock.ExpectQuery("SELECT (.+) FROM job_postings WHERE source_id").
		WithArgs("acme").
		WillReturnRows(rows)

	got, err := store.PostingsBySource(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Engineer", got[0].Title)
	require.Equal(t, 1, got[0].Misses)
	require.Nil(t, got[0].PostedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthMissingSourceReturnsNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT (.+) FROM health_states").
		WithArgs("nope").
		WillReturnRows(pgxmock.NewRows([]string{
			"source_id", "status", "consecutive_failures", "consecutive_empties", "last_success", "updated_at",
		}))

	_, err := store.Health(context.Background(), "nope")
	require.ErrorIs(t, err, scrape.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetHealthUpserts(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Unix(1750000000, 0).UTC()
	state := scrape.HealthState{
		SourceID:            "acme",
		Status:              scrape.HealthDegraded,
		ConsecutiveFailures: 2,
		UpdatedAt:           now,
	}

	mock.ExpectExec("INSERT INTO health_states").
		WithArgs("acme", "degraded", 2, 0, (*time.Time)(nil), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.SetHealth(context.Background(), state))
	require.NoError(t, mock.ExpectationsWereMet())
}
