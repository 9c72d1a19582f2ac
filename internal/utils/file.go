package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyFile copies a file from src to dst and flushes dst to disk.
// Returns the number of bytes copied.
func CopyFile(src, dst string) (int64, error) {
	if err := EnsureDir(filepath.Dir(dst)); err != nil {
		return 0, err
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(dstFile, srcFile)
	if err != nil {
		dstFile.Close()
		return n, err
	}

	if err := dstFile.Sync(); err != nil {
		dstFile.Close()
		return n, err
	}

	return n, dstFile.Close()
}

// WriteFileAtomic streams r into path through a temp file in the same directory,
// renaming it into place only once every byte is on disk.
// On failure nothing is left at path or in the directory.
func WriteFileAtomic(path string, r io.Reader, perm os.FileMode) (int64, error) {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(perm); err != nil {
		return 0, err
	}

	n, err := io.Copy(tmp, r)
	if err != nil {
		return n, fmt.Errorf("write: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		return n, err
	}

	if err := tmp.Close(); err != nil {
		return n, err
	}

	if err := os.Rename(tmpName, path); err != nil {
		return n, err
	}

	success = true
	return n, nil
}
