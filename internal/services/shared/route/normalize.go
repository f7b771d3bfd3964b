// Package route holds request path conventions shared by HTTP handlers.
package route

import (
	"net/http"
	"strings"
)

// Canonical strips trailing "/" characters from path. The root stays "/".
func Canonical(path string) string {
	canonical := strings.TrimRight(path, "/")
	if canonical == "" {
		return "/"
	}
	return canonical
}

// RedirectTrailingSlash redirects safe requests whose path ends in "/" to
// the canonical path, keeping the query string.
//
// It returns true when a redirect was written. Route handlers should stop further
// processing when true.
func RedirectTrailingSlash(w http.ResponseWriter, r *http.Request) bool {
	if w == nil || r == nil || r.URL == nil {
		return false
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}

	canonical := Canonical(r.URL.Path)
	if canonical == r.URL.Path {
		return false
	}
	if r.URL.RawQuery != "" {
		canonical += "?" + r.URL.RawQuery
	}
	http.Redirect(w, r, canonical, http.StatusMovedPermanently)
	return true
}
