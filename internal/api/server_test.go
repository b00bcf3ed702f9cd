package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boardwatch/boardwatch/internal/metrics"
	"github.com/boardwatch/boardwatch/internal/scrape"
	"github.com/boardwatch/boardwatch/internal/storage/memory"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

func seedStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	older := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(48 * time.Hour)

	require.NoError(t, store.Merge(ctx, "acme", []scrape.JobPosting{
		{Key: "a1", SourceID: "acme", Title: "Engineer", FirstSeen: newer, LastSeen: newer, Open: true},
		{Key: "a2", SourceID: "acme", Title: "Closed Role", FirstSeen: older, LastSeen: older, Open: false},
	}, scrape.MergeStats{}))
	require.NoError(t, store.Merge(ctx, "globex", []scrape.JobPosting{
		{Key: "g1", SourceID: "globex", Title: "Designer", FirstSeen: older, LastSeen: older, Open: true},
	}, scrape.MergeStats{}))
	require.NoError(t, store.AppendAttempt(ctx, scrape.ScrapeAttempt{
		ID: "at-1", SourceID: "acme", At: newer, Outcome: scrape.OutcomeSuccess, Postings: 2,
	}))
	require.NoError(t, store.SetHealth(ctx, scrape.HealthState{
		SourceID: "acme", Status: scrape.HealthHealthy, UpdatedAt: newer,
	}))
	return store
}

func newTestServer(t *testing.T, cfg Config) (*httptest.Server, *memory.Store) {
	t.Helper()
	store := seedStore(t)
	srv := httptest.NewServer(NewServer(store, cfg, zap.NewNop()).Handler())
	t.Cleanup(srv.Close)
	return srv, store
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestListPostingsNewestFirst(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, Config{})
	var body struct {
		Postings []scrape.JobPosting `json:"postings"`
	}
	status := getJSON(t, srv.URL+"/v1/postings", &body)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body.Postings, 3)
	require.Equal(t, "a1", body.Postings[0].Key)
}

func TestListPostingsOpenFilter(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, Config{})
	var body struct {
		Postings []scrape.JobPosting `json:"postings"`
	}
	status := getJSON(t, srv.URL+"/v1/postings?open=true", &body)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body.Postings, 2)
	for _, p := range body.Postings {
		require.True(t, p.Open)
	}
}

func TestListSourcePostings(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, Config{})
	var body struct {
		SourceID string              `json:"source_id"`
		Postings []scrape.JobPosting `json:"postings"`
	}
	status := getJSON(t, srv.URL+"/v1/sources/acme/postings", &body)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "acme", body.SourceID)
	require.Len(t, body.Postings, 2)
}

func TestListSourceAttempts(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, Config{})
	var body struct {
		Attempts []scrape.ScrapeAttempt `json:"attempts"`
	}
	status := getJSON(t, srv.URL+"/v1/sources/acme/attempts", &body)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body.Attempts, 1)
	require.Equal(t, scrape.OutcomeSuccess, body.Attempts[0].Outcome)

	status = getJSON(t, srv.URL+"/v1/sources/acme/attempts?limit=0", nil)
	require.Equal(t, http.StatusBadRequest, status)
}

func TestGetSourceHealth(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, Config{})
	var state scrape.HealthState
	status := getJSON(t, srv.URL+"/v1/sources/acme/health", &state)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, scrape.HealthHealthy, state.Status)

	status = getJSON(t, srv.URL+"/v1/sources/unknown/health", nil)
	require.Equal(t, http.StatusNotFound, status)
}

func TestHealthzAndMetricsExposed(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, Config{})
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/healthz", nil))

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPIKeyRequiredWhenConfigured(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, Config{AuthAPIKey: "secret"})

	status := getJSON(t, srv.URL+"/v1/postings", nil)
	require.Equal(t, http.StatusForbidden, status)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/postings", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "secret")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequestIDHeaderSet(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, Config{})
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}
