// Package normalize turns raw extractor output into identity-keyed,
// deduplicated job postings.
package normalize

import (
	"errors"
	"strings"
	"time"

	"github.com/boardwatch/boardwatch/internal/scrape"
)

// locationAbbrev expands common short forms that boards use
// interchangeably with the full name. Matching is per comma-separated
// part, whole-part only, so "US Bank Tower" is left alone.
var locationAbbrev = map[string]string{
	"nyc":    "New York",
	"ny":     "New York",
	"sf":     "San Francisco",
	"la":     "Los Angeles",
	"uk":     "United Kingdom",
	"us":     "United States",
	"usa":    "United States",
	"remote": "Remote",
}

// Normalizer converts RawPostings from one source run into JobPostings
// keyed for merge. It is stateless and safe for concurrent use.
type Normalizer struct{}

// New builds a Normalizer.
func New() *Normalizer {
	return &Normalizer{}
}

// Normalize maps the run's raw postings onto JobPostings, deduplicating
// by identity key. When two raw postings collide on a key, the one from
// the higher-confidence extraction path wins; an exact tie keeps the
// first encountered. Postings that cannot be normalized are dropped and
// reported as warning strings.
func (n *Normalizer) Normalize(source scrape.PageSource, raw []scrape.RawPosting, now time.Time) ([]scrape.JobPosting, []string) {
	type entry struct {
		posting scrape.JobPosting
		rank    int
	}

	var (
		order    []string
		byKey    = map[string]entry{}
		warnings []string
	)

	for _, rp := range raw {
		posting, err := normalizeOne(source, rp, now)
		if err != nil {
			warnings = append(warnings, err.Error())
			continue
		}
		rank := rp.Provenance.Strategy.Rank()

		prev, ok := byKey[posting.Key]
		if !ok {
			order = append(order, posting.Key)
			byKey[posting.Key] = entry{posting: posting, rank: rank}
			continue
		}
		if rank < prev.rank {
			byKey[posting.Key] = entry{posting: posting, rank: rank}
		}
	}

	out := make([]scrape.JobPosting, 0, len(order))
	for _, key := range order {
		out = append(out, byKey[key].posting)
	}
	return out, warnings
}

func normalizeOne(source scrape.PageSource, rp scrape.RawPosting, now time.Time) (scrape.JobPosting, error) {
	title := collapse(rp.Title)

	link := ""
	if rp.URL != "" {
		canonical, err := scrape.CanonicalJobURL(rp.URL)
		if err != nil {
			return scrape.JobPosting{}, &scrape.NormalizationError{Field: "url", Value: rp.URL, Err: err}
		}
		link = canonical
	}
	if title == "" && link == "" {
		return scrape.JobPosting{}, &scrape.NormalizationError{
			Field: "title",
			Value: rp.Title,
			Err:   errors.New("no title and no url"),
		}
	}

	location := CanonicalLocation(rp.Location)
	return scrape.JobPosting{
		Key:       scrape.IdentityKey(source.ID, link, title, source.ID, location),
		SourceID:  source.ID,
		Title:     title,
		Company:   source.ID,
		Location:  location,
		URL:       link,
		FirstSeen: now,
		LastSeen:  now,
		Open:      true,
		PostedAt:  rp.PostedAt,
	}, nil
}

// CanonicalLocation collapses whitespace and expands common
// abbreviations part by part. It never invents geography beyond the
// abbreviation table.
func CanonicalLocation(s string) string {
	parts := strings.Split(collapse(s), ",")
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if full, ok := locationAbbrev[strings.ToLower(p)]; ok {
			p = full
		}
		out = append(out, p)
	}
	return strings.Join(out, ", ")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
