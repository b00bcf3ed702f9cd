package scrape

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by store reads when no record exists for the
// requested source.
var ErrNotFound = errors.New("not found")

// ErrMergeConflict signals that two merges for the same source raced.
// Under per-source serialization it should not arise; if it does, the
// run is reported failed without partial writes.
var ErrMergeConflict = errors.New("merge conflict")

// FetchError reports a failed page retrieval.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Transient reports whether the failure is worth retrying: timeouts,
// 5xx, and rate-limit responses. Other 4xx are permanent.
func (e *FetchError) Transient() bool {
	switch {
	case e.StatusCode >= 500:
		return true
	case e.StatusCode == 429:
		return true
	case e.StatusCode >= 400:
		return false
	default:
		return true
	}
}

// RenderError reports a failed headless render. Rendering is already
// the fallback path, so it is never retried.
type RenderError struct {
	URL string
	Err error
}

func (e *RenderError) Error() string { return fmt.Sprintf("render %s: %v", e.URL, e.Err) }

func (e *RenderError) Unwrap() error { return e.Err }

// NormalizationError marks a single raw posting that could not be
// normalized. The posting is dropped; the source run continues.
type NormalizationError struct {
	Field string
	Value string
	Err   error
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *NormalizationError) Unwrap() error { return e.Err }
