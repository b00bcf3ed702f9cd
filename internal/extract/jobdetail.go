package extract

import (
	"net/url"
	"regexp"
	"strings"
)

// Path segments that strongly indicate a non-detail page.
var badPathSegments = map[string]bool{
	"saved": true, "alerts": true, "recommendations": true, "dashboard": true,
	"signin": true, "sign-in": true, "login": true, "help": true, "support": true,
	"about": true, "privacy": true, "terms": true, "eeo": true, "legal": true,
	"how-we-hire": true, "saved-jobs": true,
}

var uuidRe = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// Known ATS hosts. Conservative: fewer false positives beats coverage.
var atsHostPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:^|\.)jobs\.lever\.co$`),
	regexp.MustCompile(`(?i)(?:^|\.)boards\.greenhouse\.io$`),
	regexp.MustCompile(`(?i)(?:^|\.)job-boards(?:\.eu)?\.greenhouse\.io$`),
	regexp.MustCompile(`(?i)(?:^|\.)smartrecruiters\.com$`),
	regexp.MustCompile(`(?i)(?:^|\.)workable\.com$`),
	regexp.MustCompile(`(?i)(?:^|\.)jobvite\.com$`),
	regexp.MustCompile(`(?i)(?:^|\.)ashbyhq\.com$`),
	regexp.MustCompile(`(?i)(?:^|\.)(?:[a-z0-9-]+\.wd\d+\.)?myworkdayjobs\.com$`),
}

// URL path shapes of actual job detail pages.
var jobDetailPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(^|/)(?:[a-z]{2}-[a-z]{2}/)?details/\d{6,}(?:-\d+)?(?:/|$)`),
	regexp.MustCompile(`(?i)(^|/)jobs?/results?/\d`),
	regexp.MustCompile(`(?i)(^|/)careers?/.*/\d`),
	regexp.MustCompile(`(?i)(^|/)positions?/\d`),
	regexp.MustCompile(`(?i)(^|/)vacanc(?:y|ies)/\d`),
	regexp.MustCompile(`(?i)(^|/)job/[^/]+/[^/]+_(?:JR|R|REQ)[-_]?\d{4,}(?:-\d+)?(?:/|$)`),
	regexp.MustCompile(`(?i)(^|/)wday/(?:jobs|cxs)/[^/]+/[^/]+/job/`),
	regexp.MustCompile(`(?i)(^|/)(?:[a-z]{2}(?:-[a-z]{2})?/)?job/[\w-]{6,}(?:/|$)`),
}

var jobSlugRe = regexp.MustCompile(`/job[s]?/[\w-]{4,}(/|$)`)

func hostMatchesATS(host string) bool {
	for _, p := range atsHostPatterns {
		if p.MatchString(host) {
			return true
		}
	}
	return false
}

// looksLikeJobDetailURL reports whether an absolute URL looks like a
// job detail page rather than a listing or navigation page. It errs on
// the conservative side to avoid collecting category pages.
func looksLikeJobDetailURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return false
	}

	path := parsed.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	for _, p := range jobDetailPatterns {
		if p.MatchString(path) {
			return true
		}
	}

	segments := nonEmptySegments(path)
	if hostMatchesATS(parsed.Hostname()) {
		if len(segments) >= 2 {
			leaf := segments[len(segments)-1]
			if uuidRe.MatchString(strings.ToLower(leaf)) || isDigits(leaf) {
				return true
			}
		}
		for _, s := range segments {
			switch s {
			case "j", "job", "jobs", "openings":
				return true
			}
		}
	}

	// Narrow fallback: a /job(s)/<slug> path outside known non-detail
	// sections, excluding obvious pagination.
	if strings.Contains(path, "job") && !strings.Contains(strings.ToLower(raw), "page=") {
		for _, s := range segments {
			if badPathSegments[strings.ToLower(s)] {
				return false
			}
		}
		if jobSlugRe.MatchString(path) {
			return true
		}
	}
	return false
}

func nonEmptySegments(path string) []string {
	var out []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
