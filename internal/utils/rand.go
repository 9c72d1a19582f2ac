package utils

import (
	"crypto/rand"
	"fmt"
)

// lowercase base34, no i or o so names stay readable
const suffixAlphabet = "0123456789abcdefghjklmnpqrstuvwxyz"

// bytes at or above this are rejected to keep the draw uniform
const suffixCutoff = 256 - 256%len(suffixAlphabet)

// RandSuffix returns length random characters for file names.
// Lowercase only, so names survive case-insensitive filesystems.
func RandSuffix(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid length: %d", length)
	}

	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= suffixCutoff {
				continue
			}
			out = append(out, suffixAlphabet[int(b)%len(suffixAlphabet)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}
