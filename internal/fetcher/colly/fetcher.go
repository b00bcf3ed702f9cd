// Package collyfetcher implements scrape.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/boardwatch/boardwatch/internal/scrape"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	MaxBody   int
}

// Fetcher retrieves raw listing HTML through a Colly collector.
type Fetcher struct {
	cfg           Config
	clock         scrape.Clock
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config, clock scrape.Clock) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())
	if cfg.MaxBody > 0 {
		c.MaxBodySize = cfg.MaxBody
	}

	return &Fetcher{
		cfg:           cfg,
		clock:         clock,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET. Non-2xx responses are returned as
// a *scrape.FetchError carrying the status code so the retry policy
// can distinguish transient from permanent failures.
func (f *Fetcher) Fetch(ctx context.Context, url string) (scrape.RawDocument, error) {
	var (
		result   scrape.RawDocument
		fetchErr error
	)
	start := f.clock.Now()

	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)

	collector.OnResponse(func(r *colly.Response) {
		result = scrape.RawDocument{
			URL:        r.Request.URL.String(),
			Body:       append([]byte(nil), r.Body...),
			StatusCode: r.StatusCode,
			FetchedAt:  start,
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = &scrape.FetchError{URL: url, StatusCode: status, Err: err}
	})

	if err := f.runCollector(ctx, collector, url, &fetchErr); err != nil {
		return scrape.RawDocument{}, err
	}
	if result.StatusCode < 200 || result.StatusCode >= 300 {
		return scrape.RawDocument{}, &scrape.FetchError{URL: url, StatusCode: result.StatusCode}
	}
	return result, nil
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return *fetchErr
		}
		if err != nil {
			return &scrape.FetchError{URL: url, Err: err}
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
