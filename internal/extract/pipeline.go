// Package extract implements the layered generic extraction pipeline:
// JSON-LD structured data, repeated-block pattern detection, then
// anchor heuristics, applied in fixed priority order.
package extract

import (
	"bytes"
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/boardwatch/boardwatch/internal/scrape"
)

// Config holds the pipeline's tunable confidence knobs.
type Config struct {
	// MinPostings is the minimum result-set size a strategy must yield
	// to win; strategies below it are skipped so one page never mixes
	// extraction granularities.
	MinPostings int
	// MinBlockSiblings is the repeated-block prototype threshold.
	MinBlockSiblings int
}

// Pipeline applies the generic strategies in priority order.
type Pipeline struct {
	cfg Config
}

// New builds a Pipeline, filling unset knobs with defaults.
func New(cfg Config) *Pipeline {
	if cfg.MinPostings <= 0 {
		cfg.MinPostings = 1
	}
	if cfg.MinBlockSiblings <= 0 {
		cfg.MinBlockSiblings = 3
	}
	return &Pipeline{cfg: cfg}
}

// Extract implements scrape.Extractor. The first strategy yielding at
// least MinPostings results wins; zero postings overall is reported as
// an empty result, not an error.
func (p *Pipeline) Extract(_ context.Context, doc scrape.RawDocument, _ scrape.PageSource) (scrape.ExtractResult, error) {
	parsed, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
	if err != nil {
		return scrape.ExtractResult{}, fmt.Errorf("parse document %s: %w", doc.URL, err)
	}

	result := scrape.ExtractResult{Strategy: scrape.StrategyUnknown}
	strategies := []struct {
		name scrape.Strategy
		run  func() []scrape.RawPosting
	}{
		{scrape.StrategyJSONLD, func() []scrape.RawPosting { return extractJSONLD(parsed, doc.URL) }},
		{scrape.StrategyBlocks, func() []scrape.RawPosting {
			return extractRepeatedBlocks(parsed, doc.URL, p.cfg.MinBlockSiblings)
		}},
		{scrape.StrategyAnchors, func() []scrape.RawPosting { return extractAnchors(parsed, doc.URL) }},
	}
	for _, s := range strategies {
		postings := s.run()
		if len(postings) < p.cfg.MinPostings {
			continue
		}
		for i := range postings {
			postings[i].Provenance.Strategy = s.name
			postings[i].Provenance.Rendered = doc.Rendered
		}
		result.Postings = postings
		result.Strategy = s.name
		break
	}

	if next := discoverNextPageURL(parsed, doc.URL); next != "" && scrape.SameHost(next, doc.URL) {
		result.NextURLs = append(result.NextURLs, next)
	}
	return result, nil
}
