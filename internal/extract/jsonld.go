package extract

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/boardwatch/boardwatch/internal/scrape"
)

// extractJSONLD parses schema.org JobPosting nodes out of ld+json
// script tags. Highest-confidence strategy: fields come straight from
// structured data.
func extractJSONLD(doc *goquery.Document, baseURL string) []scrape.RawPosting {
	var postings []scrape.RawPosting

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, tag *goquery.Selection) {
		raw := strings.TrimSpace(tag.Text())
		if raw == "" {
			return
		}
		var payload any
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			// Malformed ld+json happens in the wild; other strategies
			// will catch the postings.
			return
		}
		for _, node := range flattenLDNodes(payload) {
			posting, ok := postingFromLDNode(node, baseURL)
			if ok {
				postings = append(postings, posting)
			}
		}
	})
	return postings
}

// flattenLDNodes normalizes ld+json payloads into a flat node list,
// following @graph, mainEntity, and item wrappers.
func flattenLDNodes(payload any) []map[string]any {
	var nodes []map[string]any

	var add func(any)
	add = func(v any) {
		switch n := v.(type) {
		case map[string]any:
			nodes = append(nodes, n)
			if graph, ok := n["@graph"].([]any); ok {
				for _, g := range graph {
					add(g)
				}
			}
			if main, ok := n["mainEntity"].(map[string]any); ok {
				add(main)
			}
			if item, ok := n["item"].(map[string]any); ok {
				add(item)
			}
		case []any:
			for _, e := range n {
				add(e)
			}
		}
	}
	add(payload)
	return nodes
}

func postingFromLDNode(node map[string]any, baseURL string) (scrape.RawPosting, bool) {
	if !isJobPostingType(node["@type"]) {
		return scrape.RawPosting{}, false
	}
	title := strings.TrimSpace(firstString(node, "title", "name"))
	rawURL := strings.TrimSpace(firstString(node, "url", "applicationUrl"))
	if title == "" || rawURL == "" {
		return scrape.RawPosting{}, false
	}
	abs, err := scrape.ResolveURL(rawURL, baseURL)
	if err != nil {
		return scrape.RawPosting{}, false
	}

	posting := scrape.RawPosting{
		Title:      title,
		URL:        abs,
		Location:   ldLocation(node),
		Provenance: scrape.Provenance{Strategy: scrape.StrategyJSONLD},
	}
	if salary := ldSalary(node); salary != "" {
		posting.Compensation = salary
	}
	if posted := firstString(node, "datePosted"); posted != "" {
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, posted); err == nil {
				posting.PostedAt = &t
				break
			}
		}
	}
	return posting, true
}

func isJobPostingType(v any) bool {
	switch t := v.(type) {
	case string:
		return t == "JobPosting"
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok && s == "JobPosting" {
				return true
			}
		}
	}
	return false
}

func firstString(node map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := node[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func ldLocation(node map[string]any) string {
	loc, ok := node["jobLocation"]
	if !ok {
		return ""
	}
	var parts []string
	var walk func(any)
	walk = func(v any) {
		switch n := v.(type) {
		case map[string]any:
			if addr, ok := n["address"].(map[string]any); ok {
				for _, k := range []string{"addressLocality", "addressRegion", "addressCountry"} {
					if s, ok := addr[k].(string); ok && s != "" {
						parts = append(parts, s)
					}
				}
				return
			}
			if s, ok := n["name"].(string); ok && s != "" {
				parts = append(parts, s)
			}
		case []any:
			for _, e := range n {
				walk(e)
			}
		case string:
			parts = append(parts, n)
		}
	}
	walk(loc)
	return strings.Join(parts, ", ")
}

func ldSalary(node map[string]any) string {
	base, ok := node["baseSalary"].(map[string]any)
	if !ok {
		return ""
	}
	if s, ok := base["value"].(map[string]any); ok {
		if v, ok := s["value"].(float64); ok && v > 0 {
			currency, _ := base["currency"].(string)
			return strings.TrimSpace(currency + " " + trimFloat(v))
		}
	}
	return ""
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
