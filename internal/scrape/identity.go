package scrape

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// IdentityKey derives the stable key recognizing "the same posting"
// across runs: source plus canonical URL, or source plus
// title/company/location when the posting has no URL. The same inputs
// always produce the same key.
func IdentityKey(sourceID, canonicalURL, title, company, location string) string {
	var sb strings.Builder
	sb.WriteString(sourceID)
	sb.WriteByte('|')
	if canonicalURL != "" {
		sb.WriteString(canonicalURL)
	} else {
		sb.WriteString(foldIdentity(title))
		sb.WriteByte('|')
		sb.WriteString(foldIdentity(company))
		sb.WriteByte('|')
		sb.WriteString(foldIdentity(location))
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

func foldIdentity(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
