package utils

import (
	"net/url"
	"strings"
)

// IsValidURL reports whether raw is an absolute http(s) URL with a host
func IsValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

// JoinURL joins a base URL and path segments with exactly one slash between them.
// Segments are escaped, slashes inside a segment are kept.
func JoinURL(base string, segments ...string) string {
	out := strings.TrimRight(base, "/")
	for _, seg := range segments {
		seg = strings.Trim(seg, "/")
		if seg == "" {
			continue
		}
		parts := strings.Split(seg, "/")
		for i, p := range parts {
			parts[i] = url.PathEscape(p)
		}
		out += "/" + strings.Join(parts, "/")
	}
	return out
}
