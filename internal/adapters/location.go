package adapters

import (
	"regexp"
	"strings"
)

var (
	locationSplitRe = regexp.MustCompile(`[;,/|•·]+`)
	nonAlnumRe      = regexp.MustCompile(`[^a-z0-9]+`)
)

func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// splitLocations breaks a rendered location string like
// "Geneva; Taipei; Paris; " into its parts.
func splitLocations(text string) []string {
	if text == "" {
		return nil
	}
	var out []string
	for _, part := range locationSplitRe.Split(text, -1) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// matchesLocationTerms reports whether any candidate location matches
// any hint term under case- and accent-insensitive substring matching.
// An empty term list accepts everything.
func matchesLocationTerms(candidates, terms []string) bool {
	normTerms := make([]string, 0, len(terms))
	for _, t := range terms {
		if n := normalizeLocation(t); n != "" {
			normTerms = append(normTerms, n)
		}
	}
	if len(normTerms) == 0 {
		return true
	}
	for _, c := range candidates {
		nc := normalizeLocation(c)
		for _, nt := range normTerms {
			if strings.Contains(nc, nt) {
				return true
			}
		}
	}
	return false
}

// normalizeLocation lowercases, folds accents to ASCII where possible,
// and collapses punctuation to single spaces.
func normalizeLocation(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r < 128:
			b.WriteRune(r)
		default:
			if folded := foldRune(r); folded != 0 {
				b.WriteRune(folded)
			} else {
				b.WriteRune(r)
			}
		}
	}
	return strings.TrimSpace(nonAlnumRe.ReplaceAllString(b.String(), " "))
}

// accentFold maps common accented letters onto their ASCII base.
var accentFold = map[rune]rune{
	'à': 'a', 'á': 'a', 'â': 'a', 'ã': 'a', 'ä': 'a', 'å': 'a',
	'ç': 'c',
	'è': 'e', 'é': 'e', 'ê': 'e', 'ë': 'e',
	'ì': 'i', 'í': 'i', 'î': 'i', 'ï': 'i',
	'ñ': 'n',
	'ò': 'o', 'ó': 'o', 'ô': 'o', 'õ': 'o', 'ö': 'o',
	'ù': 'u', 'ú': 'u', 'û': 'u', 'ü': 'u',
	'ý': 'y', 'ÿ': 'y',
}

func foldRune(r rune) rune {
	if folded, ok := accentFold[r]; ok {
		return folded
	}
	return 0
}
