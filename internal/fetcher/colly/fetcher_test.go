package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/boardwatch/boardwatch/internal/clock/system"
	"github.com/boardwatch/boardwatch/internal/scrape"
)

func TestFetchReturnsDocument(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><h1>Jobs</h1></body></html>"))
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "boardwatch-test", Timeout: 5 * time.Second}, system.Clock{})
	doc, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, 200, doc.StatusCode)
	require.Contains(t, string(doc.Body), "<h1>Jobs</h1>")
	require.False(t, doc.Rendered)
	require.False(t, doc.FetchedAt.IsZero())
}

func TestFetchReportsStatusInError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(Config{Timeout: 5 * time.Second}, system.Clock{})
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var fetchErr *scrape.FetchError
	require.True(t, errors.As(err, &fetchErr))
	require.Equal(t, 404, fetchErr.StatusCode)
	require.False(t, fetchErr.Transient())
}

func TestFetchServerErrorIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := New(Config{Timeout: 5 * time.Second}, system.Clock{})
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var fetchErr *scrape.FetchError
	require.True(t, errors.As(err, &fetchErr))
	require.True(t, fetchErr.Transient())
}

func TestFetchHonorsCancellation(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	f := New(Config{Timeout: 30 * time.Second}, system.Clock{})
	_, err := f.Fetch(ctx, srv.URL)
	require.Error(t, err)
}
