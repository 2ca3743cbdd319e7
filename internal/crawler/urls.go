
package crawler

import (
	"net/url"
	"strings"
)

// IsHTTPURL reports whether raw parses as an http or https URL.
func IsHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// LiftToDomain rewrites raw to scheme://host/ with the host lowercased.
// Unparseable input is returned unchanged.
func LiftToDomain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Hostname() == "" {
		return raw
	}
	return u.Scheme + "://" + strings.ToLower(u.Hostname()) + "/"
}

// Dedupe drops repeated entries, keeping the first occurrence.
func Dedupe(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, s := range list {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
