package health

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boardwatch/boardwatch/internal/scrape"
	"github.com/boardwatch/boardwatch/internal/storage/memory"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTracker(t *testing.T) (*Tracker, *memory.Store, *fakeClock) {
	t.Helper()
	store := memory.New()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	return NewTracker(store, clock, DefaultConfig(), zap.NewNop()), store, clock
}

func success(sourceID string, n int, at time.Time) scrape.ScrapeAttempt {
	return scrape.ScrapeAttempt{SourceID: sourceID, At: at, Outcome: scrape.OutcomeSuccess, Postings: n}
}

func posting(key, title string) scrape.JobPosting {
	return scrape.JobPosting{Key: key, SourceID: "acme", Title: title, Open: true}
}

var src = scrape.PageSource{ID: "acme", URL: "https://acme.example/careers"}

func TestRecordInsertsThenUpdates(t *testing.T) {
	t.Parallel()

	tr, store, clock := newTracker(t)
	ctx := context.Background()

	stats, state, err := tr.Record(ctx, src, []scrape.JobPosting{posting("k1", "Engineer")}, success("acme", 1, clock.now))
	require.NoError(t, err)
	require.Equal(t, scrape.MergeStats{Inserted: 1}, stats)
	require.Equal(t, scrape.HealthHealthy, state.Status)

	firstRun := clock.now
	clock.now = clock.now.Add(time.Hour)
	stats, _, err = tr.Record(ctx, src, []scrape.JobPosting{posting("k1", "Senior Engineer")}, success("acme", 1, clock.now))
	require.NoError(t, err)
	require.Equal(t, scrape.MergeStats{Updated: 1}, stats)

	got, err := store.PostingsBySource(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Senior Engineer", got[0].Title)
	require.Equal(t, firstRun, got[0].FirstSeen)
	require.Equal(t, clock.now, got[0].LastSeen)
	require.True(t, got[0].Open)
}

func TestRecordClosesOnlyAfterConsecutiveMisses(t *testing.T) {
	t.Parallel()

	tr, store, clock := newTracker(t)
	ctx := context.Background()

	_, _, err := tr.Record(ctx, src, []scrape.JobPosting{posting("gone", "Engineer")}, success("acme", 1, clock.now))
	require.NoError(t, err)

	// Two runs without the posting keep it open.
	for i := 0; i < 2; i++ {
		clock.now = clock.now.Add(time.Hour)
		stats, _, err := tr.Record(ctx, src, []scrape.JobPosting{posting("other", "Designer")}, success("acme", 1, clock.now))
		require.NoError(t, err)
		require.Zero(t, stats.Closed)

		got, err := store.PostingsBySource(ctx, "acme")
		require.NoError(t, err)
		require.True(t, findPosting(t, got, "gone").Open)
	}

	// Third consecutive miss closes it.
	clock.now = clock.now.Add(time.Hour)
	stats, _, err := tr.Record(ctx, src, []scrape.JobPosting{posting("other", "Designer")}, success("acme", 1, clock.now))
	require.NoError(t, err)
	require.Equal(t, 1, stats.Closed)

	got, err := store.PostingsBySource(ctx, "acme")
	require.NoError(t, err)
	require.False(t, findPosting(t, got, "gone").Open)
}

func TestRecordReappearedPostingResetsMisses(t *testing.T) {
	t.Parallel()

	tr, store, clock := newTracker(t)
	ctx := context.Background()

	_, _, err := tr.Record(ctx, src, []scrape.JobPosting{posting("flaky", "Engineer")}, success("acme", 1, clock.now))
	require.NoError(t, err)

	// Miss twice, then reappear: the miss counter starts over.
	for i := 0; i < 2; i++ {
		clock.now = clock.now.Add(time.Hour)
		_, _, err = tr.Record(ctx, src, []scrape.JobPosting{posting("other", "Designer")}, success("acme", 1, clock.now))
		require.NoError(t, err)
	}
	clock.now = clock.now.Add(time.Hour)
	_, _, err = tr.Record(ctx, src, []scrape.JobPosting{posting("flaky", "Engineer")}, success("acme", 1, clock.now))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		clock.now = clock.now.Add(time.Hour)
		stats, _, err := tr.Record(ctx, src, []scrape.JobPosting{posting("other", "Designer")}, success("acme", 1, clock.now))
		require.NoError(t, err)
		require.Zero(t, stats.Closed)
	}

	got, err := store.PostingsBySource(ctx, "acme")
	require.NoError(t, err)
	require.True(t, findPosting(t, got, "flaky").Open)
}

func TestFailedRunLeavesStoreUntouched(t *testing.T) {
	t.Parallel()

	tr, store, clock := newTracker(t)
	ctx := context.Background()

	_, _, err := tr.Record(ctx, src, []scrape.JobPosting{posting("k1", "Engineer")}, success("acme", 1, clock.now))
	require.NoError(t, err)

	clock.now = clock.now.Add(time.Hour)
	stats, state, err := tr.Record(ctx, src, nil, scrape.ScrapeAttempt{
		SourceID: "acme", At: clock.now, Outcome: scrape.OutcomeFailure, ErrorText: "fetch: status 503",
	})
	require.NoError(t, err)
	require.Equal(t, scrape.MergeStats{}, stats)
	require.Equal(t, scrape.HealthDegraded, state.Status)
	require.Equal(t, 1, state.ConsecutiveFailures)

	got, err := store.PostingsBySource(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.True(t, got[0].Open)
}

func TestEmptyRunLeavesStoreUntouched(t *testing.T) {
	t.Parallel()

	tr, store, clock := newTracker(t)
	ctx := context.Background()

	_, _, err := tr.Record(ctx, src, []scrape.JobPosting{posting("k1", "Engineer")}, success("acme", 1, clock.now))
	require.NoError(t, err)

	clock.now = clock.now.Add(time.Hour)
	_, state, err := tr.Record(ctx, src, nil, scrape.ScrapeAttempt{
		SourceID: "acme", At: clock.now, Outcome: scrape.OutcomeEmpty,
	})
	require.NoError(t, err)
	require.Equal(t, 1, state.ConsecutiveEmpties)

	got, err := store.PostingsBySource(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestBrokenAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	tr, _, clock := newTracker(t)
	ctx := context.Background()

	var state scrape.HealthState
	for i := 0; i < DefaultConfig().BrokenAfter; i++ {
		clock.now = clock.now.Add(time.Hour)
		var err error
		_, state, err = tr.Record(ctx, src, nil, scrape.ScrapeAttempt{
			SourceID: "acme", At: clock.now, Outcome: scrape.OutcomeFailure, ErrorText: fmt.Sprintf("attempt %d", i),
		})
		require.NoError(t, err)
	}
	require.Equal(t, scrape.HealthBroken, state.Status)
	require.Equal(t, DefaultConfig().BrokenAfter, state.ConsecutiveFailures)
}

func TestStaleWhenLastSuccessTooOld(t *testing.T) {
	t.Parallel()

	tr, _, clock := newTracker(t)
	ctx := context.Background()

	_, _, err := tr.Record(ctx, src, []scrape.JobPosting{posting("k1", "Engineer")}, success("acme", 1, clock.now))
	require.NoError(t, err)

	clock.now = clock.now.Add(DefaultConfig().StaleAfter + time.Hour)
	_, state, err := tr.Record(ctx, src, nil, scrape.ScrapeAttempt{
		SourceID: "acme", At: clock.now, Outcome: scrape.OutcomeFailure,
	})
	require.NoError(t, err)
	require.Equal(t, scrape.HealthStale, state.Status)
	require.NotNil(t, state.LastSuccess)
}

func findPosting(t *testing.T, postings []scrape.JobPosting, key string) scrape.JobPosting {
	t.Helper()
	for _, p := range postings {
		if p.Key == key {
			return p
		}
	}
	t.Fatalf("posting %s not found", key)
	return scrape.JobPosting{}
}
