package storage

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Match: starts with one or more / OR contains \ OR contains ..
var regexForbiddenPatterns = regexp.MustCompile(`^/+|\\+|\.\.`)

// ValidateName checks a stored file name for S3 and local file system compatibility
func ValidateName(name string) bool {
	// S3 keys must be between 1 and 1024 bytes long, leave room for the prefix
	if len(name) == 0 || len(name) > 1000 {
		return false
	} else if name == "." || name == ".." {
		return false
	}

	if regexForbiddenPatterns.MatchString(name) {
		return false
	}

	// flat namespace
	if strings.ContainsRune(name, '/') {
		return false
	}

	return utf8.ValidString(name)
}

func objectKey(name string) string {
	return keyPrefix + "/" + name
}
