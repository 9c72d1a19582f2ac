package utils

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const defaultContentType = "application/octet-stream"

// camera formats missing from the stdlib mime table
var photoTypes = map[string]string{
	".heic": "image/heic",
	".heif": "image/heif",
	".avif": "image/avif",
	".webp": "image/webp",
	".dng":  "image/x-adobe-dng",
	".cr2":  "image/x-canon-cr2",
	".nef":  "image/x-nikon-nef",
}

// DetectFileContentType sniffs the content type from the file's bytes.
// The extension of name is only consulted when the bytes are inconclusive.
func DetectFileContentType(path string, name string) string {
	mt, err := mimetype.DetectFile(path)
	if err == nil && mt.String() != defaultContentType {
		return mt.String()
	}
	return DetectContentType(name)
}

// DetectContentType guesses the content type from the name's extension
func DetectContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return defaultContentType
	}
	if t, ok := photoTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return defaultContentType
}
