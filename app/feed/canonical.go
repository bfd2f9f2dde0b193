package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"
)

// Tracking parameters stripped during URL canonicalization.
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"utm_name":     true,
	"mc_cid":       true,
	"mc_eid":       true,
	"gclid":        true,
	"igshid":       true,
}

// CanonicalURL strips tracking parameters and lowercases the host. Returns
// an empty string for URLs that cannot be parsed or carry no host.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}

	u.Host = strings.ToLower(u.Host)

	if u.RawQuery != "" {
		query := u.Query()
		for param := range query {
			if trackingParams[strings.ToLower(param)] {
				query.Del(param)
			}
		}
		u.RawQuery = query.Encode()
	}

	return u.String()
}

// Hostname returns the lowercased host of a canonical URL, without port.
func Hostname(canonical string) string {
	u, err := url.Parse(canonical)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// NormalizeTitle trims, lowercases, and collapses runs of whitespace or
// punctuation to a single space.
func NormalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))

	lastSpace := false
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			if !lastSpace {
				b.WriteRune(' ')
			}
			lastSpace = true
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}

	return strings.TrimSpace(b.String())
}

// ContentHash computes the dedupe hash over the normalized title, canonical
// URL, publication date (UTC day, empty when unknown), and host. A pure
// function of its inputs.
func ContentHash(title, canonicalURL string, publishedAt *time.Time) string {
	dateOnly := ""
	if publishedAt != nil {
		dateOnly = publishedAt.UTC().Format("2006-01-02")
	}

	content := fmt.Sprintf("%s|%s|%s|%s",
		NormalizeTitle(title),
		canonicalURL,
		dateOnly,
		Hostname(canonicalURL))

	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}
