package adapters

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/boardwatch/boardwatch/internal/scrape"
)

const workdayListing = `<html><body>
<p>1-2 of 5 jobs</p>
<ul role="list">
<li><a data-automation-id="jobTitle" href="/en-US/acme/job/Berlin/Backend-Engineer_JR-10001">Backend Engineer</a>
  <dl data-automation-id="locations"><dd>Berlin, Germany</dd></dl></li>
<li><a data-automation-id="jobTitle" href="/en-US/acme/job/Remote/Data-Engineer_JR-10002">Data Engineer</a>
  <dl data-automation-id="locations"><dd>Remote</dd></dl></li>
</ul>
</body></html>`

func TestWorkdayExtractsJobTitleAnchors(t *testing.T) {
	t.Parallel()

	w := NewWorkday()
	doc := scrape.RawDocument{
		URL:      "https://acme.wd5.myworkdayjobs.com/en-US/acme?start=0",
		Body:     []byte(workdayListing),
		Rendered: true,
	}
	res, err := w.Extract(context.Background(), doc, scrape.PageSource{ID: "acme"})
	require.NoError(t, err)
	require.Len(t, res.Postings, 2)
	require.Equal(t, "Backend Engineer", res.Postings[0].Title)
	require.Equal(t, "Berlin, Germany", res.Postings[0].Location)
	require.True(t, res.Postings[0].Provenance.Rendered)
	require.Equal(t, TagWorkday, res.Postings[0].Provenance.Adapter)
}

func TestWorkdayAdvancesOffsetFromResultsWindow(t *testing.T) {
	t.Parallel()

	w := NewWorkday()
	doc := scrape.RawDocument{
		URL:  "https://acme.wd5.myworkdayjobs.com/en-US/acme?start=0",
		Body: []byte(workdayListing),
	}
	res, err := w.Extract(context.Background(), doc, scrape.PageSource{})
	require.NoError(t, err)
	require.Equal(t, []string{"https://acme.wd5.myworkdayjobs.com/en-US/acme?start=2"}, res.NextURLs)
}

func TestWorkdayStopsAtLastWindow(t *testing.T) {
	t.Parallel()

	last := `<html><body><p>4-5 of 5 jobs</p>
	<a data-automation-id="jobTitle" href="/en-US/acme/job/Berlin/SRE_JR-10005">SRE</a></body></html>`

	w := NewWorkday()
	doc := scrape.RawDocument{URL: "https://acme.wd5.myworkdayjobs.com/en-US/acme?start=3", Body: []byte(last)}
	res, err := w.Extract(context.Background(), doc, scrape.PageSource{})
	require.NoError(t, err)
	require.Len(t, res.Postings, 1)
	require.Empty(t, res.NextURLs)
}
