// Package adapters holds the dedicated per-ATS extractors. Each
// adapter implements the same contract as the generic pipeline but
// uses site-specific selectors or API payloads. The set is closed and
// registered at startup; resolution is by the explicit adapter tag on
// the source, never by host sniffing.
package adapters

import (
	"sort"

	"github.com/boardwatch/boardwatch/internal/scrape"
)

// Adapter tags accepted on a PageSource.
const (
	TagGreenhouse = "greenhouse"
	TagLever      = "lever"
	TagAshby      = "ashby"
	TagWorkday    = "workday"
)

// Registry maps adapter tags to extractors. Read-only after startup.
type Registry struct {
	byTag map[string]scrape.Extractor
}

// NewRegistry builds the registry with every known adapter.
func NewRegistry() *Registry {
	return &Registry{
		byTag: map[string]scrape.Extractor{
			TagGreenhouse: NewGreenhouse(),
			TagLever:      NewLever(),
			TagAshby:      NewAshby(),
			TagWorkday:    NewWorkday(),
		},
	}
}

// Resolve returns the extractor for a tag. A source with no matching
// tag always falls back to the generic pipeline.
func (r *Registry) Resolve(tag string) (scrape.Extractor, bool) {
	e, ok := r.byTag[tag]
	return e, ok
}

// Names lists the registered adapter tags, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byTag))
	for tag := range r.byTag {
		names = append(names, tag)
	}
	sort.Strings(names)
	return names
}
