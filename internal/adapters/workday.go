package adapters

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"github.com/boardwatch/boardwatch/internal/scrape"
)

var workdayWindowRe = regexp.MustCompile(`(?i)(\d+)\s*[-–]\s*(\d+)\s*of\s*(\d+)`)

// Workday extracts postings from rendered myworkdayjobs.com listing
// pages. Workday paginates with an offset param, advanced here using
// the "1-20 of N" results window.
type Workday struct{}

// NewWorkday builds the adapter.
func NewWorkday() *Workday {
	return &Workday{}
}

// Extract implements scrape.Extractor.
func (w *Workday) Extract(_ context.Context, doc scrape.RawDocument, _ scrape.PageSource) (scrape.ExtractResult, error) {
	parsed, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
	if err != nil {
		return scrape.ExtractResult{}, fmt.Errorf("parse workday listing %s: %w", doc.URL, err)
	}

	var postings []scrape.RawPosting
	seen := map[string]bool{}
	parsed.Find(`a[data-automation-id="jobTitle"][href]`).Each(func(_ int, a *goquery.Selection) {
		abs, err := scrape.ResolveURL(a.AttrOr("href", ""), doc.URL)
		if err != nil {
			return
		}
		link, err := scrape.CanonicalJobURL(abs)
		if err != nil || seen[link] {
			return
		}
		title := squash(a.Text())
		if title == "" {
			return
		}

		location := ""
		item := a.Closest(`li, [role="listitem"]`)
		if loc := item.Find(`[data-automation-id="locations"] dd, [data-automation-id="locations"]`).First(); loc.Length() > 0 {
			location = squash(loc.Text())
		}

		seen[link] = true
		postings = append(postings, scrape.RawPosting{
			Title:    title,
			URL:      link,
			Location: location,
			Provenance: scrape.Provenance{
				Strategy: scrape.StrategyAdapter,
				Adapter:  TagWorkday,
				Rendered: doc.Rendered,
			},
		})
	})

	result := scrape.ExtractResult{
		Postings: postings,
		Strategy: scrape.StrategyAdapter,
	}
	if next := workdayNextPage(parsed, doc.URL, len(postings)); next != "" {
		result.NextURLs = append(result.NextURLs, next)
	}
	return result, nil
}

// workdayNextPage advances the offset param when the results window
// shows more postings beyond the current page.
func workdayNextPage(doc *goquery.Document, currentURL string, pagePostings int) string {
	if pagePostings == 0 {
		return ""
	}
	m := workdayWindowRe.FindStringSubmatch(squash(doc.Find("body").Text()))
	if m == nil {
		return ""
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	total, _ := strconv.Atoi(m[3])
	if end <= 0 || end >= total || end < start {
		return ""
	}

	u, err := url.Parse(currentURL)
	if err != nil {
		return ""
	}
	offsetKey := "start"
	if u.Query().Get("offset") != "" {
		offsetKey = "offset"
	}
	next, err := scrape.WithQueryParam(currentURL, offsetKey, strconv.Itoa(end))
	if err != nil {
		return ""
	}
	return next
}
