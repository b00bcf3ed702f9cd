package adapters

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/boardwatch/boardwatch/internal/scrape"
)

// Path shape /<org>/<uuid> used by Ashby job links.
var ashbyUUIDRe = regexp.MustCompile(`/[^/]+/([0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})(?:/|$)`)

// Ashby extracts postings from jobs.ashbyhq.com boards. Class names
// there are hashed, so everything keys off the href shape.
type Ashby struct{}

// NewAshby builds the adapter.
func NewAshby() *Ashby {
	return &Ashby{}
}

// Extract implements scrape.Extractor.
func (a *Ashby) Extract(_ context.Context, doc scrape.RawDocument, _ scrape.PageSource) (scrape.ExtractResult, error) {
	parsed, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
	if err != nil {
		return scrape.ExtractResult{}, fmt.Errorf("parse ashby board %s: %w", doc.URL, err)
	}

	org := ashbyOrgSlug(doc.URL)
	var postings []scrape.RawPosting
	seen := map[string]bool{}

	parsed.Find("a[href]").Each(func(_ int, anchor *goquery.Selection) {
		href := anchor.AttrOr("href", "")
		if org != "" && !strings.HasPrefix(href, "/"+org+"/") && !strings.Contains(href, "ashbyhq.com/"+org+"/") {
			return
		}
		abs, err := scrape.ResolveURL(href, doc.URL)
		if err != nil {
			return
		}
		m := ashbyUUIDRe.FindStringSubmatch(abs)
		if m == nil {
			return
		}
		id := strings.ToLower(m[1])
		if seen[id] {
			return
		}

		title := squash(anchor.Find("h3,h2").First().Text())
		if title == "" {
			title = squash(anchor.Text())
		}
		if title == "" {
			return
		}

		link, err := scrape.CanonicalJobURL(abs)
		if err != nil {
			return
		}
		seen[id] = true
		postings = append(postings, scrape.RawPosting{
			Title: title,
			URL:   link,
			Provenance: scrape.Provenance{
				Strategy: scrape.StrategyAdapter,
				Adapter:  TagAshby,
				Rendered: doc.Rendered,
			},
		})
	})

	return scrape.ExtractResult{
		Postings: postings,
		Strategy: scrape.StrategyAdapter,
	}, nil
}

func ashbyOrgSlug(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			return seg
		}
	}
	return ""
}
