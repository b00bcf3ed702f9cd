package extract

import (
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/boardwatch/boardwatch/internal/scrape"
)

// Class tokens too generic to identify a listing item prototype.
var genericClassTokens = map[string]bool{
	"row": true, "rows": true, "col": true, "cols": true, "container": true,
	"grid": true, "section": true, "wrapper": true, "content": true,
}

// extractRepeatedBlocks finds groups of structural siblings sharing a
// (tag, class) shape, treats each shape as an item prototype, and
// collects one posting per matching element document-wide.
func extractRepeatedBlocks(doc *goquery.Document, baseURL string, minSiblings int) []scrape.RawPosting {
	if minSiblings <= 0 {
		minSiblings = 3
	}

	prototypes := map[string]int{}
	doc.Find("div,section,main,article,ul,ol").Each(func(_ int, container *goquery.Selection) {
		groups := map[string]int{}
		container.Children().Each(func(_ int, child *goquery.Selection) {
			key := prototypeKey(child)
			if key == "" {
				return
			}
			groups[key]++
		})
		for key, n := range groups {
			if n >= minSiblings {
				prototypes[key] = n
			}
		}
	})
	if len(prototypes) == 0 {
		return nil
	}

	// Deterministic order: most repeated prototype first.
	keys := make([]string, 0, len(prototypes))
	for k := range prototypes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if prototypes[keys[i]] != prototypes[keys[j]] {
			return prototypes[keys[i]] > prototypes[keys[j]]
		}
		return keys[i] < keys[j]
	})

	var postings []scrape.RawPosting
	seen := map[string]bool{}
	for _, key := range keys {
		doc.Find(selectorFromKey(key)).Each(func(_ int, item *goquery.Selection) {
			posting, ok := postingFromItem(item, baseURL)
			if !ok || seen[posting.URL] {
				return
			}
			seen[posting.URL] = true
			postings = append(postings, posting)
		})
	}
	return postings
}

func postingFromItem(item *goquery.Selection, baseURL string) (scrape.RawPosting, bool) {
	a := item.Find(`a[data-automation-id="jobTitle"][href]`).First()
	if a.Length() == 0 {
		a = item.Find("a.posting-title[href]").First()
	}
	if a.Length() == 0 {
		a = item.Find("a[href]").First()
	}
	if a.Length() == 0 {
		return scrape.RawPosting{}, false
	}

	abs, err := scrape.ResolveURL(a.AttrOr("href", ""), baseURL)
	if err != nil || !looksLikeJobDetailURL(abs) {
		return scrape.RawPosting{}, false
	}

	title := maxHeadingText(item)
	if title == "" {
		title = titleFromAria(a)
	}
	if title == "" {
		title = cleanAnchorText(a)
	}
	if !plausibleTitle(title) {
		return scrape.RawPosting{}, false
	}

	return scrape.RawPosting{
		Title:      title,
		URL:        abs,
		Location:   itemLocation(item),
		Provenance: scrape.Provenance{Strategy: scrape.StrategyBlocks},
	}, true
}

// itemLocation looks for the conventional location element inside a
// listing block; empty when absent.
func itemLocation(item *goquery.Selection) string {
	sel := item.Find(`.location, [data-automation-id="locations"], .posting-categories .location`).First()
	if sel.Length() == 0 {
		return ""
	}
	return collapseSpace(sel.Text())
}

func prototypeKey(node *goquery.Selection) string {
	tag := goquery.NodeName(node)
	if tag == "" {
		return ""
	}
	classes := strings.Fields(node.AttrOr("class", ""))
	if len(classes) == 0 {
		return ""
	}
	sort.Strings(classes)
	for _, c := range classes {
		if genericClassTokens[strings.ToLower(c)] {
			return ""
		}
	}
	return tag + "|" + strings.Join(classes, " ")
}

func selectorFromKey(key string) string {
	parts := strings.SplitN(key, "|", 2)
	selector := parts[0]
	if len(parts) == 2 {
		for _, c := range strings.Fields(parts[1]) {
			selector += "." + c
		}
	}
	return selector
}
