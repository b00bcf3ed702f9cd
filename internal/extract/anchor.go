package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/boardwatch/boardwatch/internal/scrape"
)

// extractAnchors is the lowest-confidence strategy: any link whose URL
// or contents look like a job detail page becomes a minimal posting.
func extractAnchors(doc *goquery.Document, baseURL string) []scrape.RawPosting {
	var postings []scrape.RawPosting
	seen := map[string]bool{}

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") {
			return
		}
		abs, err := scrape.ResolveURL(href, baseURL)
		if err != nil {
			return
		}

		looksLikeJob := a.AttrOr("data-automation-id", "") == "jobTitle" ||
			hasClass(a, "jobTitle") ||
			looksLikeJobDetailURL(abs) ||
			hasMeaningfulHeading(a)
		if !looksLikeJob {
			return
		}

		link, err := scrape.CanonicalJobURL(abs)
		if err != nil || seen[link] {
			return
		}

		title := headingTitle(a)
		if title == "" {
			title = titleFromAria(a)
		}
		if title == "" {
			title = cleanAnchorText(a)
		}
		if !plausibleTitle(title) {
			return
		}

		seen[link] = true
		postings = append(postings, scrape.RawPosting{
			Title:      title,
			URL:        link,
			Provenance: scrape.Provenance{Strategy: scrape.StrategyAnchors},
		})
	})
	return postings
}

// headingTitle prefers the highest heading level inside the anchor.
func headingTitle(a *goquery.Selection) string {
	for _, tag := range []string{"h1", "h2", "h3", "h4", "h5", "h6"} {
		h := a.Find(tag).First()
		if h.Length() == 0 {
			continue
		}
		if txt := collapseSpace(h.Text()); txt != "" {
			return txt
		}
	}
	return ""
}

func hasMeaningfulHeading(a *goquery.Selection) bool {
	return plausibleTitle(headingTitle(a))
}

func hasClass(s *goquery.Selection, class string) bool {
	for _, c := range strings.Fields(s.AttrOr("class", "")) {
		if c == class {
			return true
		}
	}
	return false
}
