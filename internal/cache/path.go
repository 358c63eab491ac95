package cache

import (
	"regexp"
	"strings"
)

var schemePattern = regexp.MustCompile(`^\w+://(.+)`)

// PathFor derives the cache-relative path of a page URL.
//
// The scheme is dropped. A URL with a query string becomes
// "<everything before ?>/<query with = replaced by _>.html"; any text after a
// second "?" is ignored. Other URLs become "<rest>.html". A string without a
// scheme is returned unchanged.
func PathFor(rawURL string) string {
	m := schemePattern.FindStringSubmatch(rawURL)
	if m == nil {
		return rawURL
	}
	sub := m[1]

	if strings.Contains(sub, "?") {
		parts := strings.SplitN(sub, "?", 3)
		return parts[0] + "/" + strings.ReplaceAll(parts[1], "=", "_") + ".html"
	}
	return sub + ".html"
}
