package adapters

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"github.com/boardwatch/boardwatch/internal/scrape"
)

var ghJobPathRe = regexp.MustCompile(`/jobs/(\d+)(?:/|$)`)

// Greenhouse extracts postings from Greenhouse board pages
// (boards.greenhouse.io / job-boards.greenhouse.io). It additionally
// honors the source's location-term hints, used by region-specific
// boards to keep only roles in the configured locales.
type Greenhouse struct{}

// NewGreenhouse builds the adapter.
func NewGreenhouse() *Greenhouse {
	return &Greenhouse{}
}

// Extract implements scrape.Extractor.
func (g *Greenhouse) Extract(_ context.Context, doc scrape.RawDocument, source scrape.PageSource) (scrape.ExtractResult, error) {
	parsed, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
	if err != nil {
		return scrape.ExtractResult{}, fmt.Errorf("parse greenhouse board %s: %w", doc.URL, err)
	}

	anchors := parsed.Find("tr.job-post td.cell a[href]")
	if anchors.Length() == 0 {
		// Older board markup: opening rows with a direct link.
		anchors = parsed.Find(`div.opening a[href*="/jobs/"], a[href*="/jobs/"]`)
	}

	var postings []scrape.RawPosting
	seenIDs := map[string]bool{}
	anchors.Each(func(_ int, a *goquery.Selection) {
		abs, err := scrape.ResolveURL(a.AttrOr("href", ""), doc.URL)
		if err != nil {
			return
		}
		parsedURL, err := url.Parse(abs)
		if err != nil {
			return
		}
		m := ghJobPathRe.FindStringSubmatch(parsedURL.Path)
		if m == nil {
			return
		}
		jobID := m[1]
		if seenIDs[jobID] {
			return
		}

		title := greenhouseTitle(a)
		if title == "" {
			return
		}
		location := greenhouseLocation(a)
		if !matchesLocationTerms(splitLocations(location), source.LocationTerms) {
			return
		}

		link, err := scrape.CanonicalJobURL(abs)
		if err != nil {
			return
		}
		seenIDs[jobID] = true
		postings = append(postings, scrape.RawPosting{
			Title:    title,
			URL:      link,
			Location: location,
			Provenance: scrape.Provenance{
				Strategy: scrape.StrategyAdapter,
				Adapter:  TagGreenhouse,
				Rendered: doc.Rendered,
			},
		})
	})

	return scrape.ExtractResult{
		Postings: postings,
		Strategy: scrape.StrategyAdapter,
	}, nil
}

// greenhouseTitle prefers the dedicated title node inside the cell and
// falls back to the anchor's own text minus the location line.
func greenhouseTitle(a *goquery.Selection) string {
	if p := a.Find("p.body--medium, .opening-title").First(); p.Length() > 0 {
		return squash(p.Text())
	}
	clone := a.Clone()
	clone.Find(".location, p.body--metadata").Remove()
	return squash(clone.Text())
}

func greenhouseLocation(a *goquery.Selection) string {
	if loc := a.Find(".location, p.body--metadata").First(); loc.Length() > 0 {
		return squash(loc.Text())
	}
	row := a.Closest("tr, div.opening")
	if loc := row.Find(".location").First(); loc.Length() > 0 {
		return squash(loc.Text())
	}
	return ""
}
