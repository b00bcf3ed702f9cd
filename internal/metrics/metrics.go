// Package metrics exposes Prometheus collectors for the scrape service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scrapePagesTotal           *prometheus.CounterVec
	scrapeRendersTotal         *prometheus.CounterVec
	scrapeRunsTotal            *prometheus.CounterVec
	scrapePostingsSeen         *prometheus.CounterVec
	scrapeRunDurationSeconds   *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	scrapeActiveWorkers        prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scrapePagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_pages_total",
				Help: "Total number of pages fetched, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		scrapeRendersTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_renders_total",
				Help: "Total headless render fallbacks, labeled by site and result.",
			},
			[]string{"site", "result"},
		)

		scrapeRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_runs_total",
				Help: "Total source runs, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		scrapePostingsSeen = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_postings_seen_total",
				Help: "Postings extracted per run, labeled by source and strategy.",
			},
			[]string{"source", "strategy"},
		)

		scrapeRunDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scrape_run_duration_seconds",
				Help:    "Histogram of per-source run durations.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"source"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		scrapeActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scrape_active_workers",
				Help: "Number of workers currently processing a source.",
			},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage increments the page fetch counters.
func ObservePage(site string, status int) {
	scrapePagesTotal.WithLabelValues(SanitizeSite(site), strconv.Itoa(status)).Inc()
}

// ObserveRender records a headless render fallback result.
func ObserveRender(site string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	scrapeRendersTotal.WithLabelValues(SanitizeSite(site), result).Inc()
}

// ObserveRun records a completed source run.
func ObserveRun(source, strategy, outcome string, postings int, duration time.Duration) {
	scrapeRunsTotal.WithLabelValues(outcome).Inc()
	if postings > 0 {
		scrapePostingsSeen.WithLabelValues(source, strategy).Add(float64(postings))
	}
	scrapeRunDurationSeconds.WithLabelValues(source).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	scrapeActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	scrapeActiveWorkers.Dec()
}
