package crawl

import (
	"net"
	"net/url"
	"strings"
)

// Links ending in these extensions point at binary assets, not documents.
var skipExtensions = []string{
	".pdf", ".jpg", ".jpeg", ".png", ".gif", ".zip", ".rar",
	".exe", ".dmg", ".mp4", ".mp3", ".avi",
}

// Links containing any of these are fragments or non-HTTP schemes.
var skipMarkers = []string{"#", "mailto:", "tel:", "javascript:", "ftp://"}

// Set is a string set keyed by absolute URL.
type Set map[string]struct{}

// Has reports whether u is in the set. A nil set is empty.
func (s Set) Has(u string) bool {
	_, ok := s[u]
	return ok
}

// Add inserts u.
func (s Set) Add(u string) {
	s[u] = struct{}{}
}

// ShouldSkip reports whether rawURL is a binary asset, a fragment link, or
// uses a scheme that cannot be crawled. Matching is case-insensitive.
func ShouldSkip(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, marker := range skipMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}

	path := lower
	if u, err := url.Parse(lower); err == nil {
		path = u.Path
	}
	for _, ext := range skipExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// IsEligible reports whether candidate should be added to the frontier of a
// crawl that started at seed. The host must match the seed host exactly, the
// URL must pass ShouldSkip, and it must be in neither visited nor queued.
func IsEligible(candidate, seed string, visited, queued Set) bool {
	if !SameHost(candidate, seed) {
		return false
	}
	if ShouldSkip(candidate) {
		return false
	}
	return !visited.Has(candidate) && !queued.Has(candidate)
}

// SameHost reports whether both URLs parse and name the same host.
func SameHost(a, b string) bool {
	ha, ok := hostOf(a)
	if !ok {
		return false
	}
	hb, ok := hostOf(b)
	return ok && ha == hb
}

// hostOf returns the lowercased host[:port] of raw with any default port removed.
func hostOf(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	host := strings.ToLower(u.Host)
	_, port, err := net.SplitHostPort(host)
	if err != nil {
		return host, true
	}
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		return strings.TrimSuffix(host, ":"+port), true
	}
	return host, true
}
