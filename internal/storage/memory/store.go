// Package memory provides an in-process Store used by tests and
// single-node runs without Postgres.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/boardwatch/boardwatch/internal/scrape"
)

// Store keeps all state in maps behind one mutex. Merge replaces a
// source's posting set wholesale, so readers never observe a partial
// merge.
type Store struct {
	mu       sync.RWMutex
	postings map[string][]scrape.JobPosting
	attempts map[string][]scrape.ScrapeAttempt
	health   map[string]scrape.HealthState
}

// New builds an empty Store.
func New() *Store {
	return &Store{
		postings: map[string][]scrape.JobPosting{},
		attempts: map[string][]scrape.ScrapeAttempt{},
		health:   map[string]scrape.HealthState{},
	}
}

// PostingsBySource implements scrape.Store.
func (s *Store) PostingsBySource(_ context.Context, sourceID string) ([]scrape.JobPosting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]scrape.JobPosting, len(s.postings[sourceID]))
	copy(out, s.postings[sourceID])
	return out, nil
}

// AllPostings implements scrape.Store, ordered open-first then
// first-seen descending for the newest-jobs view.
func (s *Store) AllPostings(_ context.Context) ([]scrape.JobPosting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []scrape.JobPosting
	for _, ps := range s.postings {
		out = append(out, ps...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Open != out[j].Open {
			return out[i].Open
		}
		if !out[i].FirstSeen.Equal(out[j].FirstSeen) {
			return out[i].FirstSeen.After(out[j].FirstSeen)
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

// Merge implements scrape.Store.
func (s *Store) Merge(_ context.Context, sourceID string, postings []scrape.JobPosting, _ scrape.MergeStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	replaced := make([]scrape.JobPosting, len(postings))
	copy(replaced, postings)
	s.postings[sourceID] = replaced
	return nil
}

// AppendAttempt implements scrape.Store.
func (s *Store) AppendAttempt(_ context.Context, attempt scrape.ScrapeAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[attempt.SourceID] = append(s.attempts[attempt.SourceID], attempt)
	return nil
}

// Attempts implements scrape.Store, newest-first.
func (s *Store) Attempts(_ context.Context, sourceID string, limit int) ([]scrape.ScrapeAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.attempts[sourceID]
	out := make([]scrape.ScrapeAttempt, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// SetHealth implements scrape.Store.
func (s *Store) SetHealth(_ context.Context, state scrape.HealthState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health[state.SourceID] = state
	return nil
}

// Health implements scrape.Store.
func (s *Store) Health(_ context.Context, sourceID string) (scrape.HealthState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.health[sourceID]
	if !ok {
		return scrape.HealthState{}, scrape.ErrNotFound
	}
	return state, nil
}
