package scrape

import (
	"fmt"
	"net/url"
	"strings"
)

// Query params that must not affect page or posting identity:
// pagination markers, referral tags, and analytics noise.
var volatileParams = map[string]bool{
	"page": true, "start": true, "offset": true, "from": true, "startrow": true,
	"ref": true, "referral": true, "src": true, "source": true,
	"gh_src": true, "gh_jid": true,
	"_gl": true, "_ga": true, "_gac": true,
	"utm_source": true, "utm_medium": true, "utm_campaign": true,
	"utm_term": true, "utm_content": true,
}

// Keys recognized as pagination markers, in the order sites tend to
// use them.
var paginationKeys = []string{"page", "p", "pg", "pageno", "pagenumber", "start", "offset", "from", "startrow"}

// NormalizeURL standardizes a URL so that equivalent spellings compare
// equal. It lowercases the scheme and host, removes default ports and
// fragments, and sorts query parameters. Normalizing an already
// canonical URL returns it unchanged.
func NormalizeURL(rawURL string) (string, error) {
	u, err := parseAbsolute(rawURL)
	if err != nil {
		return "", err
	}

	q := u.Query()
	u.RawQuery = encodeSorted(q)
	return u.String(), nil
}

// ResolveURL resolves a possibly-relative href against base and
// normalizes the result.
func ResolveURL(href, base string) (string, error) {
	b, err := parseAbsolute(base)
	if err != nil {
		return "", err
	}
	h, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse href %q: %w", href, err)
	}
	return NormalizeURL(b.ResolveReference(h).String())
}

// CanonicalJobURL canonicalizes a posting URL for identity purposes:
// volatile params (tracking, referral, pagination) are dropped and the
// remaining query is sorted.
func CanonicalJobURL(rawURL string) (string, error) {
	u, err := parseAbsolute(rawURL)
	if err != nil {
		return "", err
	}

	q := u.Query()
	for key := range q {
		if volatileParams[strings.ToLower(key)] {
			q.Del(key)
		}
	}
	u.RawQuery = encodeSorted(q)
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String(), nil
}

// Pagination is a pagination marker recognized in a URL's query.
type Pagination struct {
	Key   string
	Value string
}

// SplitPagination separates a URL into its canonical listing identity
// and the pagination marker it carried, if any. First-page markers
// (page=1, start=0) are treated as absent.
func SplitPagination(rawURL string) (string, *Pagination, error) {
	u, err := parseAbsolute(rawURL)
	if err != nil {
		return "", nil, err
	}

	q := u.Query()
	var marker *Pagination
	for _, key := range paginationKeys {
		for actual := range q {
			if strings.ToLower(actual) != key {
				continue
			}
			value := q.Get(actual)
			q.Del(actual)
			if !firstPageValue(key, value) {
				marker = &Pagination{Key: actual, Value: value}
			}
			break
		}
		if marker != nil {
			break
		}
	}
	for key := range q {
		if volatileParams[strings.ToLower(key)] {
			q.Del(key)
		}
	}
	u.RawQuery = encodeSorted(q)
	u.Fragment = ""
	return u.String(), marker, nil
}

// WithQueryParam returns the URL with one query parameter replaced.
// Used to construct "next page" URLs for offset-style pagination.
func WithQueryParam(rawURL, key, value string) (string, error) {
	u, err := parseAbsolute(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = encodeSorted(q)
	return u.String(), nil
}

// SameHost reports whether two URLs share a host. Pagination never
// follows links off the source's host.
func SameHost(a, b string) bool {
	ua, errA := url.Parse(a)
	ub, errB := url.Parse(b)
	if errA != nil || errB != nil {
		return false
	}
	return strings.EqualFold(ua.Host, ub.Host)
}

func parseAbsolute(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme in %q", rawURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host in %q", rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	u.Fragment = ""
	return u, nil
}

func firstPageValue(key, value string) bool {
	switch key {
	case "start", "offset", "from", "startrow":
		return value == "0" || value == ""
	default:
		return value == "1" || value == ""
	}
}

func encodeSorted(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	return q.Encode()
}
