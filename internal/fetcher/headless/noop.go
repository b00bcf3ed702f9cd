package headless

import (
	"context"
	"errors"

	"github.com/boardwatch/boardwatch/internal/scrape"
)

// Noop implements scrape.Renderer but always fails, for builds where
// headless rendering is disabled.
type Noop struct{}

// NewNoop creates a new Noop renderer.
func NewNoop() *Noop {
	return &Noop{}
}

// Render returns an error since this is a stub implementation.
func (Noop) Render(_ context.Context, url string) (scrape.RawDocument, error) {
	return scrape.RawDocument{}, &scrape.RenderError{URL: url, Err: errors.New("headless renderer not configured")}
}
