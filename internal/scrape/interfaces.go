package scrape

import (
	"context"
	"io"
	"time"
)

// Fetcher retrieves a URL and returns the raw document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (RawDocument, error)
}

// Renderer re-fetches a URL through a script-executing path and
// returns DOM-equivalent HTML.
type Renderer interface {
	Render(ctx context.Context, url string) (RawDocument, error)
}

// ShellDetector decides whether a fetched document is a JS shell that
// needs the render fallback before extraction.
type ShellDetector interface {
	NeedsRender(doc RawDocument) bool
}

// Extractor turns one document into raw postings plus follow-up
// pagination URLs. Both the generic pipeline and every site adapter
// implement this contract.
type Extractor interface {
	Extract(ctx context.Context, doc RawDocument, source PageSource) (ExtractResult, error)
}

// Store is the durable owner of postings, attempts, and health. The
// merge path must be atomic per source. Attempts returns newest-first.
type Store interface {
	PostingsBySource(ctx context.Context, sourceID string) ([]JobPosting, error)
	AllPostings(ctx context.Context) ([]JobPosting, error)
	Merge(ctx context.Context, sourceID string, postings []JobPosting, stats MergeStats) error
	AppendAttempt(ctx context.Context, attempt ScrapeAttempt) error
	Attempts(ctx context.Context, sourceID string, limit int) ([]ScrapeAttempt, error)
	SetHealth(ctx context.Context, state HealthState) error
	Health(ctx context.Context, sourceID string) (HealthState, error)
}

// BlobStore archives raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Publisher pushes run-completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// RetryPolicy controls the fetch retry loop.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces attempt IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
