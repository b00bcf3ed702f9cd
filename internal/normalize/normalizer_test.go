package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/boardwatch/boardwatch/internal/scrape"
)

var testSource = scrape.PageSource{ID: "acme", URL: "https://acme.example/careers"}

func TestNormalizeCollapsesWhitespaceAndKeysPostings(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	raw := []scrape.RawPosting{{
		Title:    "  Senior\n  Engineer ",
		Location: " Berlin,  Germany ",
		URL:      "https://acme.example/jobs/1?utm_source=feed",
	}}

	got, warnings := New().Normalize(testSource, raw, now)
	require.Empty(t, warnings)
	require.Len(t, got, 1)
	require.Equal(t, "Senior Engineer", got[0].Title)
	require.Equal(t, "Berlin, Germany", got[0].Location)
	require.Equal(t, "https://acme.example/jobs/1", got[0].URL)
	require.Equal(t, scrape.IdentityKey("acme", "https://acme.example/jobs/1", "Senior Engineer", "acme", "Berlin, Germany"), got[0].Key)
	require.Equal(t, now, got[0].FirstSeen)
	require.Equal(t, now, got[0].LastSeen)
	require.True(t, got[0].Open)
}

func TestNormalizeDedupsAcrossPagesKeepingFirst(t *testing.T) {
	t.Parallel()

	raw := []scrape.RawPosting{
		{Title: "Engineer", URL: "https://acme.example/jobs/1", Location: "Berlin"},
		{Title: "Engineer", URL: "https://acme.example/jobs/1?page=2", Location: "Berlin"},
	}
	got, warnings := New().Normalize(testSource, raw, time.Now())
	require.Empty(t, warnings)
	require.Len(t, got, 1)
}

func TestNormalizeHigherConfidenceStrategyWins(t *testing.T) {
	t.Parallel()

	raw := []scrape.RawPosting{
		{
			Title:      "Engineer",
			URL:        "https://acme.example/jobs/1",
			Provenance: scrape.Provenance{Strategy: scrape.StrategyAnchors},
		},
		{
			Title:      "Engineer",
			URL:        "https://acme.example/jobs/1",
			Location:   "Berlin",
			Provenance: scrape.Provenance{Strategy: scrape.StrategyJSONLD},
		},
	}
	got, _ := New().Normalize(testSource, raw, time.Now())
	require.Len(t, got, 1)
	require.Equal(t, "Berlin", got[0].Location)
}

func TestNormalizeDropsPostingsWithoutTitleOrURL(t *testing.T) {
	t.Parallel()

	raw := []scrape.RawPosting{
		{Title: "   ", URL: ""},
		{Title: "Engineer", URL: "https://acme.example/jobs/2"},
	}
	got, warnings := New().Normalize(testSource, raw, time.Now())
	require.Len(t, got, 1)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0], "no title and no url")
}

func TestCanonicalLocationExpandsAbbreviations(t *testing.T) {
	t.Parallel()

	require.Equal(t, "New York, United States", CanonicalLocation("NYC, USA"))
	require.Equal(t, "Remote", CanonicalLocation("remote"))
	require.Equal(t, "US Bank Tower", CanonicalLocation("US Bank Tower"))
}
