package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/boardwatch/boardwatch/internal/scrape"
)

var (
	nextLabelRe     = regexp.MustCompile(`(?i)\b(next|go to next page|weiter|suivant|siguiente)\b`)
	resultsWindowRe = regexp.MustCompile(`(?i)(\d+)\s*[-–—]\s*(\d+)\s*of\s*(\d+)`)
	totalPagesRe    = regexp.MustCompile(`(?i)of\s+(\d+)`)
)

// Alternate keys some sites use instead of `page`.
var altPageKeys = []string{"p", "pg", "pageNo", "pageNumber", "currentPage"}

// discoverNextPageURL returns the absolute URL of the next results
// page, or "" when none can be found or constructed. It prefers
// explicit next links and falls back to incrementing known paging
// query parameters.
func discoverNextPageURL(doc *goquery.Document, currentURL string) string {
	if href := findNextHref(doc); href != "" {
		if abs, err := scrape.ResolveURL(href, currentURL); err == nil {
			return abs
		}
	}

	parsed, err := url.Parse(currentURL)
	if err != nil {
		return ""
	}
	query := parsed.Query()
	totalPages := totalPagesFromDOM(doc)

	// ?page=N style: increment.
	for _, key := range append([]string{"page"}, altPageKeys...) {
		raw := query.Get(key)
		if raw == "" {
			continue
		}
		current, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		next := current + 1
		if totalPages > 0 && next > totalPages {
			return ""
		}
		out, err := scrape.WithQueryParam(currentURL, key, strconv.Itoa(next))
		if err != nil {
			return ""
		}
		return out
	}

	// Offset style: advance by the visible page size.
	for _, key := range []string{"start", "offset", "from", "startrow"} {
		raw := query.Get(key)
		if raw == "" {
			continue
		}
		pageSize, total := resultsWindow(doc)
		if pageSize <= 0 {
			continue
		}
		current, _ := strconv.Atoi(raw)
		next := current + pageSize
		if total > 0 && next >= total {
			return ""
		}
		out, err := scrape.WithQueryParam(currentURL, key, strconv.Itoa(next))
		if err != nil {
			return ""
		}
		return out
	}
	return ""
}

func findNextHref(doc *goquery.Document) string {
	if href, ok := doc.Find(`a[rel="next"]`).First().Attr("href"); ok {
		return href
	}

	found := ""
	doc.Find("a[aria-label][href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		label := a.AttrOr("aria-label", "")
		if !nextLabelRe.MatchString(label) {
			return true
		}
		if strings.EqualFold(a.AttrOr("aria-disabled", ""), "true") || hasClass(a, "disabled") {
			return true
		}
		found = a.AttrOr("href", "")
		return false
	})
	if found != "" {
		return found
	}

	nav := doc.Find(`nav[aria-label*="agination"]`).First()
	if nav.Length() > 0 {
		if href, ok := nav.Find(`a[href][rel="next"], a[href][aria-label*="ext"]`).First().Attr("href"); ok {
			return href
		}
	}
	return ""
}

// resultsWindow parses "1-20 of 125" style counters into (pageSize, total).
func resultsWindow(doc *goquery.Document) (int, int) {
	text := collapseSpace(doc.Find("body").Text())
	m := resultsWindowRe.FindStringSubmatch(text)
	if m == nil {
		return 0, 0
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	total, _ := strconv.Atoi(m[3])
	if end < start {
		return 0, total
	}
	return end - start + 1, total
}

func totalPagesFromDOM(doc *goquery.Document) int {
	if txt := collapseSpace(doc.Find(".rc-pagination-total-pages, .pagination-total-pages").First().Text()); txt != "" {
		if n, err := strconv.Atoi(strings.ReplaceAll(txt, ",", "")); err == nil {
			return n
		}
	}
	// "Page X of Y" style live regions.
	out := 0
	doc.Find("[aria-live]").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		m := totalPagesRe.FindStringSubmatch(el.Text())
		if m == nil {
			return true
		}
		if n, err := strconv.Atoi(m[1]); err == nil {
			out = n
			return false
		}
		return true
	})
	return out
}
