// Package detector decides when a fetched page needs the render fallback.
package detector

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/boardwatch/boardwatch/internal/scrape"
)

// Config holds the tunable thresholds. Rendering is expensive, so the
// defaults err toward under-flagging: a page is promoted only when its
// visible text is thin AND it carries client-side framework signals.
type Config struct {
	MinVisibleText int
	MinBodyBytes   int
	ScriptCoverage int
	MountSelectors []string
	HintStrings    []string
}

// Heuristic implements scrape.ShellDetector with rule-based signals.
type Heuristic struct {
	cfg Config
}

// NewHeuristic creates a detector, filling unset thresholds with defaults.
func NewHeuristic(cfg Config) *Heuristic {
	if cfg.MinVisibleText == 0 {
		cfg.MinVisibleText = 200
	}
	if cfg.MinBodyBytes == 0 {
		cfg.MinBodyBytes = 2048
	}
	if cfg.ScriptCoverage == 0 {
		cfg.ScriptCoverage = 25
	}
	if len(cfg.MountSelectors) == 0 {
		cfg.MountSelectors = []string{"#__next", "#root", "#app", "[data-reactroot]", "[ng-app]"}
	}
	if len(cfg.HintStrings) == 0 {
		cfg.HintStrings = []string{
			"enable javascript",
			"turn on javascript",
			"requires javascript",
			"needs javascript",
		}
	}
	return &Heuristic{cfg: cfg}
}

// NeedsRender reports whether the document looks like a JS shell whose
// content only exists after script execution.
func (h *Heuristic) NeedsRender(doc scrape.RawDocument) bool {
	if doc.Rendered || doc.StatusCode != 200 {
		return false
	}
	if len(bytes.TrimSpace(doc.Body)) == 0 {
		return true
	}

	parsed, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
	if err != nil {
		return false
	}

	text := visibleText(parsed)
	if len(text) >= h.cfg.MinVisibleText {
		return false
	}

	lower := strings.ToLower(text)
	for _, hint := range h.cfg.HintStrings {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	for _, selector := range h.cfg.MountSelectors {
		sel := parsed.Find(selector)
		if sel.Length() > 0 && len(strings.TrimSpace(sel.Text())) == 0 {
			return true
		}
	}
	if len(doc.Body) < h.cfg.MinBodyBytes && scriptCoveragePct(doc.Body) >= h.cfg.ScriptCoverage {
		return true
	}
	return false
}

func visibleText(doc *goquery.Document) string {
	body := doc.Find("body").Clone()
	body.Find("script,style,noscript").Remove()
	return strings.Join(strings.Fields(body.Text()), " ")
}

// scriptCoveragePct returns the percentage of the raw HTML occupied by
// script tags and their contents.
func scriptCoveragePct(body []byte) int {
	lower := strings.ToLower(string(body))
	total := len(lower)
	if total == 0 {
		return 0
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	coverage := 0
	pos := 0
	for {
		rel := strings.Index(lower[pos:], openTag)
		if rel == -1 {
			break
		}
		start := pos + rel
		end := strings.Index(lower[start:], closeTag)
		if end == -1 {
			coverage += total - start
			break
		}
		next := start + end + len(closeTag)
		coverage += next - start
		pos = next
	}
	return coverage * 100 / total
}
