package urlutil

import (
	"net/url"
	"sort"
	"strings"
)

// Canonicalize applies a deterministic normalization to a URL, producing a
// canonical form. It maps equivalent URL spellings to a single canonical
// representation used for deduplication and identity hashing.
//
// The normalization follows these rules:
//   - Scheme and host are lowercased
//   - Default ports are omitted (e.g., :80 for http, :443 for https)
//   - Fragments are removed
//   - Query parameters are kept but sorted by key (then value)
//   - Trailing slashes are removed from the path (except for root "/")
//
// Properties:
//   - Pure: no state, no memory
//   - Deterministic: same input always produces same output
//   - Idempotent: Canonicalize(Canonicalize(url)) == Canonicalize(url)
func Canonicalize(sourceUrl url.URL) url.URL {
	// Create a copy to avoid mutating the original
	canonical := sourceUrl

	// Lowercase scheme and host
	canonical.Scheme = lowerASCII(canonical.Scheme)
	canonical.Host = lowerASCII(canonical.Host)

	// Remove default port if present
	if host, port := canonical.Hostname(), canonical.Port(); port != "" {
		if (canonical.Scheme == "http" && port == "80") ||
			(canonical.Scheme == "https" && port == "443") {
			canonical.Host = host
		}
	}

	// Clean the path: remove trailing slashes (except root)
	if len(canonical.Path) > 1 {
		canonical.Path = stripTrailingSlash(canonical.Path)
	}

	// Remove fragment (anchor)
	canonical.Fragment = ""
	canonical.RawFragment = ""

	// Sort query parameters for a stable spelling
	canonical.RawQuery = sortQuery(canonical.RawQuery)
	canonical.ForceQuery = false

	return canonical
}

// sortQuery re-encodes a raw query with keys (and repeated values) in
// sorted order. An unparseable query is kept as-is.
func sortQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return rawQuery
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		vs := values[k]
		sort.Strings(vs)
		for _, v := range vs {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			if v != "" {
				b.WriteByte('=')
				b.WriteString(url.QueryEscape(v))
			}
		}
	}
	return b.String()
}

// IsHTTP reports whether the URL uses a crawlable scheme.
func IsHTTP(u url.URL) bool {
	return u.Scheme == "http" || u.Scheme == "https"
}

// FilterByHost keeps only URLs whose host matches the given host exactly.
func FilterByHost(host string, urls []url.URL) []url.URL {
	filtered := make([]url.URL, 0, len(urls))
	for _, u := range urls {
		if u.Host == host {
			filtered = append(filtered, u)
		}
	}
	return filtered
}

// HostAllowed applies the allow/deny host policy. The deny list always
// wins; an empty allow list means every host is allowed.
func HostAllowed(host string, allow, deny map[string]struct{}) bool {
	if _, denied := deny[host]; denied {
		return false
	}
	if len(allow) == 0 {
		return true
	}
	_, ok := allow[host]
	return ok
}

// lowerASCII converts ASCII characters to lowercase without allocating.
// This is faster than strings.ToLower for ASCII-only strings.
func lowerASCII(s string) string {
	var needsLower bool
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			needsLower = true
			break
		}
	}
	if !needsLower {
		return s
	}
	b := make([]byte, len(s))
	copy(b, s)
	for i := 0; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// stripTrailingSlash removes trailing slashes from a path.
func stripTrailingSlash(path string) string {
	for len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	return path
}
