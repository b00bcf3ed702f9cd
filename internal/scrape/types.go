// Package scrape defines core types shared across subsystems.
package scrape

import (
	"time"
)

// PageSource is a configured origin to scrape. It is created by the
// configuration collaborator and never mutated by the pipeline.
type PageSource struct {
	ID            string   `json:"id"`
	URL           string   `json:"url"`
	Adapter       string   `json:"adapter,omitempty"`
	LocationTerms []string `json:"location_terms,omitempty"`
}

// RawDocument is the result of one fetch. It lives only for the
// duration of a fetch-extract cycle.
type RawDocument struct {
	URL        string
	Body       []byte
	StatusCode int
	Rendered   bool
	FetchedAt  time.Time
	Duration   time.Duration
}

// RawPosting is an extractor's output before normalization.
type RawPosting struct {
	Title        string
	Location     string
	URL          string
	Compensation string
	PostedAt     *time.Time
	Provenance   Provenance
}

// Provenance identifies which extraction path produced a RawPosting.
type Provenance struct {
	Strategy Strategy
	Adapter  string
	Rendered bool
}

// Strategy names a generic extraction strategy. Ordering matters:
// lower values are higher confidence.
type Strategy string

// Extraction strategies in descending confidence order.
const (
	StrategyAdapter Strategy = "adapter"
	StrategyJSONLD  Strategy = "jsonld"
	StrategyBlocks  Strategy = "blocks"
	StrategyAnchors Strategy = "anchors"
	StrategyUnknown Strategy = ""
)

// Rank returns the confidence rank of the strategy; lower wins.
func (s Strategy) Rank() int {
	switch s {
	case StrategyAdapter:
		return 0
	case StrategyJSONLD:
		return 1
	case StrategyBlocks:
		return 2
	case StrategyAnchors:
		return 3
	default:
		return 4
	}
}

// JobPosting is the durable, normalized unit stored across runs.
type JobPosting struct {
	Key       string     `json:"key"`
	SourceID  string     `json:"source_id"`
	Title     string     `json:"title"`
	Company   string     `json:"company"`
	Location  string     `json:"location"`
	URL       string     `json:"url"`
	FirstSeen time.Time  `json:"first_seen"`
	LastSeen  time.Time  `json:"last_seen"`
	Open      bool       `json:"open"`
	Misses    int        `json:"-"`
	PostedAt  *time.Time `json:"posted_at,omitempty"`
}

// AttemptOutcome classifies a single run against a single source.
type AttemptOutcome string

// Attempt outcomes persisted in the attempt log.
const (
	OutcomeSuccess AttemptOutcome = "success"
	OutcomePartial AttemptOutcome = "partial"
	OutcomeEmpty   AttemptOutcome = "empty"
	OutcomeFailure AttemptOutcome = "failure"
)

// ScrapeAttempt is one run's outcome for one source. Append-only.
type ScrapeAttempt struct {
	ID        string         `json:"id"`
	SourceID  string         `json:"source_id"`
	At        time.Time      `json:"at"`
	Outcome   AttemptOutcome `json:"outcome"`
	Postings  int            `json:"postings"`
	Path      string         `json:"path"`
	Rendered  bool           `json:"rendered"`
	Pages     int            `json:"pages"`
	Warnings  []string       `json:"warnings,omitempty"`
	ErrorText string         `json:"error_text,omitempty"`
}

// HealthStatus classifies a source's recent scrape reliability.
type HealthStatus string

// Health classifications exposed to the dashboard.
const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStale    HealthStatus = "stale"
	HealthBroken   HealthStatus = "broken"
)

// HealthState is derived from the ScrapeAttempt history after each
// run; it is never hand-edited.
type HealthState struct {
	SourceID            string       `json:"source_id"`
	Status              HealthStatus `json:"status"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	ConsecutiveEmpties  int          `json:"consecutive_empties"`
	LastSuccess         *time.Time   `json:"last_success,omitempty"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// ExtractResult is what one extraction pass over one page yields.
type ExtractResult struct {
	Postings []RawPosting
	NextURLs []string
	Strategy Strategy
}

// MergeStats summarizes what a merge did to the stored set.
type MergeStats struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Closed   int `json:"closed"`
}

// RunReport is published after each source finishes a run.
type RunReport struct {
	SourceID string         `json:"source_id"`
	Outcome  AttemptOutcome `json:"outcome"`
	Postings int            `json:"postings"`
	Stats    MergeStats     `json:"stats"`
	At       time.Time      `json:"at"`
}
