// Package fingerprint derives stable content identities from candidate
// article URLs and titles. Two candidates that differ only by tracking
// parameters, host casing, or a trailing slash must fingerprint identically.
package fingerprint

import (
	"crypto/sha1" //nolint:gosec // non-cryptographic id generation
	"encoding/hex"
	"html"
	"net/url"
	"regexp"
	"strings"
)

// trackingParams are query parameters stripped during URL canonicalization.
// utm_* is matched by prefix.
var trackingParams = map[string]struct{}{
	"fbclid":   {},
	"gclid":    {},
	"msclkid":  {},
	"igshid":   {},
	"mc_cid":   {},
	"mc_eid":   {},
	"cmpid":    {},
	"ref":      {},
	"src":      {},
	"source":   {},
	"partner":  {},
	"spm":      {},
	"ncid":     {},
	"sh":       {},
}

// shortenerHosts are hosts whose URLs carry no meaningful path identity, so
// the title hash becomes the secondary fingerprint key.
var shortenerHosts = map[string]struct{}{
	"bit.ly":      {},
	"t.co":        {},
	"tinyurl.com": {},
	"ow.ly":       {},
	"goo.gl":      {},
	"buff.ly":     {},
}

// CanonicalURL normalizes a URL for identity comparison: lowercase scheme and
// host, default ports and fragments dropped, tracking parameters removed,
// remaining query sorted, trailing slash stripped.
func CanonicalURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Fragment = ""

	host := strings.ToLower(u.Host)
	switch {
	case u.Scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}
	u.Host = host

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			lk := strings.ToLower(key)
			if _, tracked := trackingParams[lk]; tracked || strings.HasPrefix(lk, "utm_") {
				q.Del(key)
			}
		}
		// url.Values.Encode sorts keys, giving a stable query ordering.
		u.RawQuery = q.Encode()
	}

	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String(), nil
}

// Compute derives the fingerprint for a candidate. The canonical URL is the
// primary key; when the URL is ambiguous (shortener host or a near-empty
// path) and a title is available, a normalized-title hash keyed by host is
// used instead so syndicated shortlinks still collapse.
func Compute(rawURL, title string) string {
	canonical, err := CanonicalURL(rawURL)
	if err != nil {
		// Unparseable URL: fall back to hashing the raw string so the
		// candidate still gets a deterministic identity.
		return hash(strings.TrimSpace(rawURL))
	}

	if title != "" && ambiguous(canonical) {
		u, _ := url.Parse(canonical)
		host := ""
		if u != nil {
			host = u.Host
		}
		return hash(host + "|" + NormalizeTitle(title))
	}
	return hash(canonical)
}

// ambiguous reports whether a canonical URL carries too little path identity
// to serve as a fingerprint on its own.
func ambiguous(canonical string) bool {
	u, err := url.Parse(canonical)
	if err != nil {
		return false
	}
	if _, short := shortenerHosts[u.Host]; short {
		return true
	}
	path := strings.Trim(u.Path, "/")
	return len(path) < 8 && u.RawQuery == ""
}

var nonWord = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeTitle lowercases a title and collapses everything that is not a
// letter or digit, so punctuation and spacing differences do not change the
// secondary fingerprint key.
func NormalizeTitle(title string) string {
	t := strings.ToLower(html.UnescapeString(title))
	return strings.Trim(nonWord.ReplaceAllString(t, " "), " ")
}

// CleanTitle produces the display form of a raw title: HTML entities decoded
// and whitespace collapsed, case and punctuation preserved.
func CleanTitle(title string) string {
	return strings.Join(strings.Fields(html.UnescapeString(title)), " ")
}

// Slug renders a title as a URL-safe slug.
func Slug(title string) string {
	norm := NormalizeTitle(title)
	slug := strings.ReplaceAll(norm, " ", "-")
	if len(slug) > 80 {
		slug = strings.Trim(slug[:80], "-")
	}
	return slug
}

// Domain extracts the lowercase registrable host from a URL, with the www
// prefix removed. Returns "" for unparseable input.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func hash(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
