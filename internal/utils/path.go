package utils

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const dirPerm = 0o755

// ResolvePath expands a leading ~ and returns the cleaned absolute path
func ResolvePath(path string) (string, error) {
	if path == "" {
		return "", errors.New("path cannot be empty")
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.New("failed to retrieve home directory")
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}

	return filepath.Abs(path)
}

// EnsureDir creates path and its parents when missing
func EnsureDir(path string) error {
	return os.MkdirAll(path, dirPerm)
}

func EnsureParent(path string) error {
	return EnsureDir(filepath.Dir(path))
}
