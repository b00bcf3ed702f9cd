package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/boardwatch/boardwatch/internal/scrape"
)

// Lever consumes the Lever postings API
// (api.lever.co/v0/postings/<org>?mode=json) instead of scraping the
// hosted board HTML. When handed the hosted page rather than the API
// payload, it emits the derived API URL as a follow-up so the next
// fetch lands on structured data.
type Lever struct{}

// NewLever builds the adapter.
func NewLever() *Lever {
	return &Lever{}
}

type leverPosting struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	HostedURL  string `json:"hostedUrl"`
	CreatedAt  int64  `json:"createdAt"`
	Categories struct {
		Location string `json:"location"`
	} `json:"categories"`
}

// Extract implements scrape.Extractor.
func (l *Lever) Extract(_ context.Context, doc scrape.RawDocument, source scrape.PageSource) (scrape.ExtractResult, error) {
	body := bytes.TrimSpace(doc.Body)
	if len(body) == 0 || body[0] != '[' {
		api, err := leverAPIURL(doc.URL)
		if err != nil {
			return scrape.ExtractResult{}, fmt.Errorf("lever source %s: %w", source.ID, err)
		}
		return scrape.ExtractResult{
			NextURLs: []string{api},
			Strategy: scrape.StrategyAdapter,
		}, nil
	}

	var raw []leverPosting
	if err := json.Unmarshal(body, &raw); err != nil {
		return scrape.ExtractResult{}, fmt.Errorf("decode lever postings: %w", err)
	}

	postings := make([]scrape.RawPosting, 0, len(raw))
	seen := map[string]bool{}
	for _, p := range raw {
		if p.Text == "" || p.HostedURL == "" || seen[p.ID] {
			continue
		}
		link, err := scrape.CanonicalJobURL(p.HostedURL)
		if err != nil {
			continue
		}
		posting := scrape.RawPosting{
			Title:    p.Text,
			URL:      link,
			Location: p.Categories.Location,
			Provenance: scrape.Provenance{
				Strategy: scrape.StrategyAdapter,
				Adapter:  TagLever,
			},
		}
		if p.CreatedAt > 0 {
			t := time.UnixMilli(p.CreatedAt).UTC()
			posting.PostedAt = &t
		}
		if p.ID != "" {
			seen[p.ID] = true
		}
		postings = append(postings, posting)
	}

	return scrape.ExtractResult{
		Postings: postings,
		Strategy: scrape.StrategyAdapter,
	}, nil
}

// leverAPIURL maps a hosted board URL (jobs.lever.co/<org>) onto the
// JSON postings endpoint.
func leverAPIURL(hosted string) (string, error) {
	u, err := url.Parse(hosted)
	if err != nil {
		return "", fmt.Errorf("parse lever url %q: %w", hosted, err)
	}
	if strings.EqualFold(u.Hostname(), "api.lever.co") {
		return hosted, nil
	}
	var org string
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			org = seg
			break
		}
	}
	if org == "" {
		return "", fmt.Errorf("no organization in lever url %q", hosted)
	}
	return fmt.Sprintf("https://api.lever.co/v0/postings/%s?mode=json", org), nil
}
