// Package health owns the conservative merge into the store and the
// per-source health classification derived from the attempt log.
package health

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/boardwatch/boardwatch/internal/scrape"
)

// Config tunes merge and classification thresholds.
type Config struct {
	// CloseAfterMisses is how many consecutive runs a posting must be
	// absent from before it is marked closed. Never below 1.
	CloseAfterMisses int
	// BrokenAfter is the consecutive failure/empty streak at which a
	// source is classified broken.
	BrokenAfter int
	// StaleAfter classifies a source stale when its last success is
	// older than this, even if the streak is below BrokenAfter.
	StaleAfter time.Duration
}

// attemptWindow bounds how much history the classifier reads back.
const attemptWindow = 20

// DefaultConfig matches the documented defaults.
func DefaultConfig() Config {
	return Config{
		CloseAfterMisses: 3,
		BrokenAfter:      5,
		StaleAfter:       48 * time.Hour,
	}
}

// Tracker applies one run's result to the store. Merges for the same
// source must not run concurrently; the dispatcher guarantees that by
// never scheduling a source twice in one run.
type Tracker struct {
	store  scrape.Store
	clock  scrape.Clock
	cfg    Config
	logger *zap.Logger
}

// NewTracker builds a Tracker over the given store.
func NewTracker(store scrape.Store, clock scrape.Clock, cfg Config, logger *zap.Logger) *Tracker {
	if cfg.CloseAfterMisses < 1 {
		cfg.CloseAfterMisses = 1
	}
	if cfg.BrokenAfter < 1 {
		cfg.BrokenAfter = DefaultConfig().BrokenAfter
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultConfig().StaleAfter
	}
	return &Tracker{store: store, clock: clock, cfg: cfg, logger: logger}
}

// Record appends the attempt, merges the run's postings when the run
// produced a usable result, and rewrites the source's HealthState. On
// failed or empty runs the posting set is left untouched; that is the
// failure-resistance guarantee the dashboard relies on.
func (t *Tracker) Record(ctx context.Context, source scrape.PageSource, postings []scrape.JobPosting, attempt scrape.ScrapeAttempt) (scrape.MergeStats, scrape.HealthState, error) {
	if err := t.store.AppendAttempt(ctx, attempt); err != nil {
		return scrape.MergeStats{}, scrape.HealthState{}, fmt.Errorf("append attempt for %s: %w", source.ID, err)
	}

	var stats scrape.MergeStats
	if usableResult(attempt.Outcome) && len(postings) > 0 {
		var err error
		stats, err = t.merge(ctx, source.ID, postings)
		if err != nil {
			return scrape.MergeStats{}, scrape.HealthState{}, err
		}
		t.logger.Info("merged run",
			zap.String("source", source.ID),
			zap.Int("inserted", stats.Inserted),
			zap.Int("updated", stats.Updated),
			zap.Int("closed", stats.Closed))
	} else {
		t.logger.Warn("store untouched for run",
			zap.String("source", source.ID),
			zap.String("outcome", string(attempt.Outcome)))
	}

	state, err := t.classify(ctx, source.ID)
	if err != nil {
		return stats, scrape.HealthState{}, err
	}
	if err := t.store.SetHealth(ctx, state); err != nil {
		return stats, scrape.HealthState{}, fmt.Errorf("set health for %s: %w", source.ID, err)
	}
	return stats, state, nil
}

func usableResult(outcome scrape.AttemptOutcome) bool {
	return outcome == scrape.OutcomeSuccess || outcome == scrape.OutcomePartial
}

// merge reconciles the run's postings with the stored set and writes
// the result atomically. Postings missing from the run are only closed
// after CloseAfterMisses consecutive absences.
func (t *Tracker) merge(ctx context.Context, sourceID string, postings []scrape.JobPosting) (scrape.MergeStats, error) {
	current, err := t.store.PostingsBySource(ctx, sourceID)
	if err != nil {
		return scrape.MergeStats{}, fmt.Errorf("load postings for %s: %w", sourceID, err)
	}
	existing := make(map[string]scrape.JobPosting, len(current))
	for _, p := range current {
		existing[p.Key] = p
	}

	now := t.clock.Now()
	var (
		stats  scrape.MergeStats
		merged = make([]scrape.JobPosting, 0, len(current)+len(postings))
		seen   = make(map[string]bool, len(postings))
	)

	for _, p := range postings {
		seen[p.Key] = true
		prev, ok := existing[p.Key]
		if !ok {
			p.FirstSeen = now
			p.LastSeen = now
			p.Open = true
			p.Misses = 0
			merged = append(merged, p)
			stats.Inserted++
			continue
		}
		p.FirstSeen = prev.FirstSeen
		p.LastSeen = now
		p.Open = true
		p.Misses = 0
		merged = append(merged, p)
		stats.Updated++
	}

	for _, p := range current {
		if seen[p.Key] {
			continue
		}
		if p.Open {
			p.Misses++
			if p.Misses >= t.cfg.CloseAfterMisses {
				p.Open = false
				stats.Closed++
			}
		}
		merged = append(merged, p)
	}

	if err := t.store.Merge(ctx, sourceID, merged, stats); err != nil {
		return scrape.MergeStats{}, fmt.Errorf("merge postings for %s: %w", sourceID, err)
	}
	return stats, nil
}

// classify rebuilds HealthState from the most recent attempts. The
// streak counts failures and empties from the newest attempt backwards
// until a success or partial.
func (t *Tracker) classify(ctx context.Context, sourceID string) (scrape.HealthState, error) {
	attempts, err := t.store.Attempts(ctx, sourceID, attemptWindow)
	if err != nil {
		return scrape.HealthState{}, fmt.Errorf("load attempts for %s: %w", sourceID, err)
	}

	state := scrape.HealthState{
		SourceID:  sourceID,
		Status:    scrape.HealthHealthy,
		UpdatedAt: t.clock.Now(),
	}
	streakOver := false
	for _, a := range attempts {
		if usableResult(a.Outcome) {
			if state.LastSuccess == nil {
				at := a.At
				state.LastSuccess = &at
			}
			streakOver = true
			continue
		}
		if streakOver {
			continue
		}
		switch a.Outcome {
		case scrape.OutcomeEmpty:
			state.ConsecutiveEmpties++
		default:
			state.ConsecutiveFailures++
		}
	}

	streak := state.ConsecutiveFailures + state.ConsecutiveEmpties
	switch {
	case streak == 0:
		state.Status = scrape.HealthHealthy
	case streak >= t.cfg.BrokenAfter:
		state.Status = scrape.HealthBroken
	case state.LastSuccess == nil || t.clock.Now().Sub(*state.LastSuccess) > t.cfg.StaleAfter:
		state.Status = scrape.HealthStale
	default:
		state.Status = scrape.HealthDegraded
	}
	return state, nil
}
