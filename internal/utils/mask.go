package utils

import "net/url"

const mask = "*****"

// MaskSecret keeps the first 4 characters of a secret for log lines
func MaskSecret(s string) string {
	if len(s) <= 4 {
		return mask
	}
	return s[:4] + mask
}

// MaskURLPassword hides the password of a connection url such as a postgres dsn.
// Strings that do not parse as urls are masked entirely.
func MaskURLPassword(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return MaskSecret(raw)
	}
	return u.Redacted()
}
