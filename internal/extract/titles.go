package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Call-to-action texts that are never job titles.
var ctaTitles = map[string]bool{
	"view job": true, "learn more": true, "read more": true, "apply now": true,
	"apply": true, "connect": true, "help": true, "sign in": true,
	"bookmark": true, "share": true,
}

var ariaPrefixRe = regexp.MustCompile(`(?i)^(?:learn more about|view details for)\s+(.+)$`)

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// maxHeadingText returns the longest heading text under node, the most
// reliable title signal inside a listing block.
func maxHeadingText(node *goquery.Selection) string {
	best := ""
	node.Find("h1,h2,h3,h4,h5,h6").Each(func(_ int, h *goquery.Selection) {
		txt := collapseSpace(h.Text())
		if len(txt) > len(best) {
			best = txt
		}
	})
	return best
}

func titleFromAria(a *goquery.Selection) string {
	aria := strings.TrimSpace(a.AttrOr("aria-label", ""))
	if aria == "" {
		return ""
	}
	if m := ariaPrefixRe.FindStringSubmatch(aria); m != nil {
		return strings.TrimSpace(m[1])
	}
	if ctaTitles[strings.ToLower(aria)] {
		return ""
	}
	return aria
}

func cleanAnchorText(a *goquery.Selection) string {
	txt := collapseSpace(a.Text())
	if txt == "" {
		txt = strings.TrimSpace(a.AttrOr("title", ""))
	}
	if ctaTitles[strings.ToLower(txt)] {
		return ""
	}
	return txt
}

func plausibleTitle(t string) bool {
	t = strings.TrimSpace(t)
	if len(t) < 4 || ctaTitles[strings.ToLower(t)] {
		return false
	}
	alnum := 0
	for _, r := range t {
		if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') {
			alnum++
		}
	}
	return alnum >= 3
}
