// Package sitekey recognises Cloudflare Turnstile site keys in URLs,
// attribute values and page source.
//
// A site key is "0x" followed by at least 20 characters from [A-Za-z0-9_-].
package sitekey

import (
	"regexp"
	"strings"
)

var (
	urlTokenRe = regexp.MustCompile(`(?:^|[/=?&])(0x[A-Za-z0-9_-]{20,})`)
	exactRe    = regexp.MustCompile(`^0x[A-Za-z0-9_-]{20,}$`)
	sourceRe   = regexp.MustCompile(`(?i)sitekey["'\s]*[:=]\s*["']?(0x[A-Za-z0-9_-]{20,})`)
)

// URLMarkers are the path fragments that identify a request belonging to
// the challenge platform.
var URLMarkers = []string{
	"challenges.cloudflare.com",
	"/turnstile/",
	"/cdn-cgi/challenge-platform/",
}

// Valid reports whether s is exactly one site-key-shaped token.
func Valid(s string) bool {
	return exactRe.MatchString(s)
}

// FromURL returns the first site-key-shaped token in rawURL, but only when
// the URL belongs to the challenge platform. The token must start a path
// segment or query value; a "0x" inside an opaque segment is not a key.
func FromURL(rawURL string) string {
	if !IsChallengeURL(rawURL) {
		return ""
	}
	m := urlTokenRe.FindStringSubmatch(rawURL)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// IsChallengeURL reports whether rawURL contains any of URLMarkers.
func IsChallengeURL(rawURL string) bool {
	for _, m := range URLMarkers {
		if strings.Contains(rawURL, m) {
			return true
		}
	}
	return false
}

// FromSource scans page source for a sitekey-labelled token, e.g.
// `sitekey: '0x…'`, `"sitekey":"0x…"` or `data-sitekey="0x…"`.
func FromSource(src string) string {
	m := sourceRe.FindStringSubmatch(src)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// FirstValid returns the first element of values that is a well-formed
// site key, or "".
func FirstValid(values []string) string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if Valid(v) {
			return v
		}
	}
	return ""
}
