package auth

import "strings"

// NormalizePath lowercases a request path and strips the trailing slash,
// keeping "/" itself intact. Query strings must already be removed
// (use r.URL.Path, not the raw request URI).
func NormalizePath(path string) string {
	path = strings.ToLower(path)
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}

// ScopeAllows reports whether a scope admits the given request path.
//
// The sentinel entry "all" admits everything. Otherwise an entry matches
// when the normalized path equals it or extends it at a "/" boundary:
// "/api/v1/search-by-login" admits "/api/v1/search-by-login/bulk" but not
// "/api/v1/search-by-logindata". Empty entries are skipped; a scope that
// normalizes to nothing admits nothing.
func ScopeAllows(scope []string, path string) bool {
	path = NormalizePath(path)

	for _, entry := range scope {
		entry = NormalizePath(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		if entry == "all" {
			return true
		}
		if path == entry || strings.HasPrefix(path, entry+"/") {
			return true
		}
	}

	return false
}
