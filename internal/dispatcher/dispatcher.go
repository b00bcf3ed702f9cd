// Package dispatcher fans sources out over a bounded worker pool.
package dispatcher

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/boardwatch/boardwatch/internal/metrics"
	"github.com/boardwatch/boardwatch/internal/scrape"
	"github.com/boardwatch/boardwatch/internal/worker"
)

// Dispatcher runs each source through the worker pipeline with bounded
// concurrency. Each source appears at most once per run, so merges for
// one source never race.
type Dispatcher struct {
	worker      *worker.Worker
	concurrency int
	logger      *zap.Logger
}

// New creates a Dispatcher.
func New(w *worker.Worker, concurrency int, logger *zap.Logger) *Dispatcher {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Dispatcher{worker: w, concurrency: concurrency, logger: logger}
}

// Run processes all sources and returns their reports, in no
// particular order. Cancelling the context stops new sources from
// starting; in-flight sources finish their own budgets.
func (d *Dispatcher) Run(ctx context.Context, sources []scrape.PageSource) []scrape.RunReport {
	jobs := make(chan scrape.PageSource)
	var (
		mu      sync.Mutex
		reports []scrape.RunReport
		wg      sync.WaitGroup
	)

	for i := 0; i < d.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for source := range jobs {
				metrics.IncActiveWorkers()
				report, err := d.worker.ProcessSource(ctx, source)
				metrics.DecActiveWorkers()
				if err != nil {
					d.logger.Error("source run aborted",
						zap.String("source", source.ID),
						zap.Error(err))
					continue
				}
				mu.Lock()
				reports = append(reports, report)
				mu.Unlock()
			}
		}()
	}

	for _, source := range sources {
		select {
		case <-ctx.Done():
			d.logger.Warn("run cancelled, skipping remaining sources")
			close(jobs)
			wg.Wait()
			return reports
		case jobs <- source:
		}
	}
	close(jobs)
	wg.Wait()
	return reports
}
