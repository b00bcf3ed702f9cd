// Package worker implements the per-source scrape pipeline: fetch,
// shell detection, render fallback, extraction, pagination, and the
// final merge.
package worker

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/boardwatch/boardwatch/internal/adapters"
	"github.com/boardwatch/boardwatch/internal/health"
	"github.com/boardwatch/boardwatch/internal/metrics"
	"github.com/boardwatch/boardwatch/internal/normalize"
	"github.com/boardwatch/boardwatch/internal/scrape"
)

// Config controls Worker behavior.
type Config struct {
	// MaxPages caps pagination follow-up per source, root page included.
	MaxPages int
	// SourceBudget bounds the wall time one source may consume.
	SourceBudget time.Duration
	// SnapshotPrefix is prepended to archived page paths.
	SnapshotPrefix string
	// ContentType is used for archived snapshots.
	ContentType string
	// Topic is the pub/sub topic for run reports; empty disables
	// publishing.
	Topic string
}

// Worker runs the scrape pipeline for one source at a time. A single
// Worker is safe for concurrent use across different sources.
type Worker struct {
	fetcher    scrape.Fetcher
	renderer   scrape.Renderer
	detector   scrape.ShellDetector
	generic    scrape.Extractor
	registry   *adapters.Registry
	normalizer *normalize.Normalizer
	tracker    *health.Tracker
	blobStore  scrape.BlobStore
	publisher  scrape.Publisher
	retry      scrape.RetryPolicy
	clock      scrape.Clock
	ids        scrape.IDGenerator
	cfg        Config
	logger     *zap.Logger
}

// New constructs a Worker. The renderer, blob store, and publisher are
// optional; everything else is required.
func New(
	fetcher scrape.Fetcher,
	renderer scrape.Renderer,
	detector scrape.ShellDetector,
	generic scrape.Extractor,
	registry *adapters.Registry,
	normalizer *normalize.Normalizer,
	tracker *health.Tracker,
	blobStore scrape.BlobStore,
	publisher scrape.Publisher,
	retry scrape.RetryPolicy,
	clock scrape.Clock,
	ids scrape.IDGenerator,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	if cfg.SourceBudget <= 0 {
		cfg.SourceBudget = 2 * time.Minute
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "text/html; charset=utf-8"
	}
	return &Worker{
		fetcher:    fetcher,
		renderer:   renderer,
		detector:   detector,
		generic:    generic,
		registry:   registry,
		normalizer: normalizer,
		tracker:    tracker,
		blobStore:  blobStore,
		publisher:  publisher,
		retry:      retry,
		clock:      clock,
		ids:        ids,
		cfg:        cfg,
		logger:     logger,
	}
}

type crawlResult struct {
	raw       []scrape.RawPosting
	pages     int
	failures  int
	truncated bool
	rendered  bool
	strategy  scrape.Strategy
	warnings  []string
	rootErr   error
}

// ProcessSource runs the full pipeline for one source and records the
// outcome. The returned error covers infrastructure problems only; a
// failed scrape is reported through the RunReport outcome.
func (w *Worker) ProcessSource(ctx context.Context, source scrape.PageSource) (scrape.RunReport, error) {
	start := w.clock.Now()
	runCtx, cancel := context.WithTimeout(ctx, w.cfg.SourceBudget)
	defer cancel()

	extractor, warnings := w.resolveExtractor(source)
	crawl := w.crawl(runCtx, source, extractor)
	crawl.warnings = append(warnings, crawl.warnings...)

	postings, normWarnings := w.normalizer.Normalize(source, crawl.raw, start)
	crawl.warnings = append(crawl.warnings, normWarnings...)

	outcome, errText := deriveOutcome(crawl, len(postings))

	id, err := w.ids.NewID()
	if err != nil {
		return scrape.RunReport{}, fmt.Errorf("generate attempt id: %w", err)
	}
	attempt := scrape.ScrapeAttempt{
		ID:        id,
		SourceID:  source.ID,
		At:        w.clock.Now(),
		Outcome:   outcome,
		Postings:  len(postings),
		Path:      string(crawl.strategy),
		Rendered:  crawl.rendered,
		Pages:     crawl.pages,
		Warnings:  crawl.warnings,
		ErrorText: errText,
	}

	stats, state, err := w.tracker.Record(ctx, source, postings, attempt)
	if err != nil {
		return scrape.RunReport{}, fmt.Errorf("record run for %s: %w", source.ID, err)
	}

	report := scrape.RunReport{
		SourceID: source.ID,
		Outcome:  outcome,
		Postings: len(postings),
		Stats:    stats,
		At:       attempt.At,
	}
	w.publishReport(ctx, report)

	metrics.ObserveRun(source.ID, string(crawl.strategy), string(outcome), len(postings), w.clock.Now().Sub(start))
	w.logger.Info("source run finished",
		zap.String("source", source.ID),
		zap.String("outcome", string(outcome)),
		zap.String("strategy", string(crawl.strategy)),
		zap.Int("pages", crawl.pages),
		zap.Int("postings", len(postings)),
		zap.String("health", string(state.Status)))
	return report, nil
}

// resolveExtractor picks the adapter named by the source's explicit
// tag, falling back to the generic pipeline when the tag is unknown or
// absent. Tags are never inferred from the URL.
func (w *Worker) resolveExtractor(source scrape.PageSource) (scrape.Extractor, []string) {
	if source.Adapter == "" {
		return w.generic, nil
	}
	if adapter, ok := w.registry.Resolve(source.Adapter); ok {
		return adapter, nil
	}
	w.logger.Warn("unknown adapter tag, using generic extraction",
		zap.String("source", source.ID),
		zap.String("adapter", source.Adapter))
	return w.generic, []string{fmt.Sprintf("unknown adapter tag %q", source.Adapter)}
}

// crawl walks the source's pages in discovery order, root first, up to
// the page cap.
func (w *Worker) crawl(ctx context.Context, source scrape.PageSource, extractor scrape.Extractor) crawlResult {
	var res crawlResult
	res.strategy = scrape.StrategyUnknown

	root, err := scrape.NormalizeURL(source.URL)
	if err != nil {
		res.rootErr = fmt.Errorf("normalize source url: %w", err)
		return res
	}

	queue := []string{root}
	visited := map[string]bool{root: true}

	for len(queue) > 0 && res.pages < w.cfg.MaxPages {
		if ctx.Err() != nil {
			res.truncated = true
			res.warnings = append(res.warnings, "source time budget exceeded")
			break
		}
		pageURL := queue[0]
		queue = queue[1:]

		doc, err := w.fetchPage(ctx, source, pageURL, res.pages)
		if err != nil {
			w.logger.Error("page fetch failed",
				zap.String("source", source.ID),
				zap.String("url", pageURL),
				zap.Error(err))
			if res.pages == 0 {
				res.rootErr = err
				return res
			}
			res.failures++
			res.warnings = append(res.warnings, fmt.Sprintf("fetch %s: %v", pageURL, err))
			continue
		}

		extracted, err := extractor.Extract(ctx, doc, source)
		if err != nil {
			w.logger.Error("extraction failed",
				zap.String("source", source.ID),
				zap.String("url", pageURL),
				zap.Error(err))
			if res.pages == 0 {
				res.rootErr = err
				return res
			}
			res.failures++
			res.warnings = append(res.warnings, fmt.Sprintf("extract %s: %v", pageURL, err))
			continue
		}

		res.pages++
		res.rendered = res.rendered || doc.Rendered
		if extracted.Strategy.Rank() < res.strategy.Rank() {
			res.strategy = extracted.Strategy
		}
		res.raw = append(res.raw, extracted.Postings...)

		for _, next := range extracted.NextURLs {
			norm, err := scrape.NormalizeURL(next)
			if err != nil || visited[norm] {
				continue
			}
			visited[norm] = true
			queue = append(queue, norm)
		}
	}
	if len(queue) > 0 && res.pages >= w.cfg.MaxPages {
		res.truncated = true
	}
	return res
}

// fetchPage retrieves one page with retries and promotes it through
// the headless renderer when the shell detector flags it.
func (w *Worker) fetchPage(ctx context.Context, source scrape.PageSource, pageURL string, pageIndex int) (scrape.RawDocument, error) {
	var (
		doc scrape.RawDocument
		err error
	)
	for attempt := 0; ; attempt++ {
		doc, err = w.fetcher.Fetch(ctx, pageURL)
		if err == nil {
			break
		}
		if !w.retry.ShouldRetry(err, attempt) {
			return scrape.RawDocument{}, err
		}
		select {
		case <-ctx.Done():
			return scrape.RawDocument{}, ctx.Err()
		case <-time.After(w.retry.Backoff(attempt)):
		}
	}
	metrics.ObservePage(pageURL, doc.StatusCode)

	if w.renderer != nil && w.detector.NeedsRender(doc) {
		rendered, rerr := w.renderer.Render(ctx, pageURL)
		metrics.ObserveRender(pageURL, rerr == nil)
		if rerr != nil {
			w.logger.Warn("render fallback failed, keeping probe document",
				zap.String("source", source.ID),
				zap.String("url", pageURL),
				zap.Error(rerr))
		} else {
			doc = rendered
		}
	}

	w.archiveSnapshot(ctx, source, pageIndex, doc)
	return doc, nil
}

// archiveSnapshot stores the page body for post-hoc debugging. Archive
// failures never fail the run.
func (w *Worker) archiveSnapshot(ctx context.Context, source scrape.PageSource, pageIndex int, doc scrape.RawDocument) {
	if w.blobStore == nil || len(doc.Body) == 0 {
		return
	}
	path := w.snapshotPath(source.ID, pageIndex)
	uri, err := w.blobStore.PutObject(ctx, path, w.cfg.ContentType, bytes.NewReader(doc.Body))
	if err != nil {
		w.logger.Warn("snapshot archive failed",
			zap.String("source", source.ID),
			zap.String("url", doc.URL),
			zap.Error(err))
		return
	}
	w.logger.Debug("snapshot archived",
		zap.String("source", source.ID),
		zap.String("blob_uri", uri))
}

func (w *Worker) snapshotPath(sourceID string, pageIndex int) string {
	day := w.clock.Now().Format("2006-01-02")
	name := fmt.Sprintf("%s/%s/page-%d.html", sourceID, day, pageIndex)
	prefix := strings.Trim(w.cfg.SnapshotPrefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

func (w *Worker) publishReport(ctx context.Context, report scrape.RunReport) {
	if w.publisher == nil || w.cfg.Topic == "" {
		return
	}
	if _, err := w.publisher.Publish(ctx, w.cfg.Topic, report); err != nil {
		w.logger.Warn("run report publish failed",
			zap.String("source", report.SourceID),
			zap.Error(err))
	}
}

func deriveOutcome(crawl crawlResult, postings int) (scrape.AttemptOutcome, string) {
	switch {
	case crawl.rootErr != nil:
		return scrape.OutcomeFailure, crawl.rootErr.Error()
	case postings == 0:
		return scrape.OutcomeEmpty, ""
	case crawl.failures > 0 || crawl.truncated:
		return scrape.OutcomePartial, ""
	default:
		return scrape.OutcomeSuccess, ""
	}
}
