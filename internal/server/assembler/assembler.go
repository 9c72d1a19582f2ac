package assembler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/openmined/photodrop/internal/server/chunk"
	"github.com/openmined/photodrop/internal/utils"
)

const suffixLength = 10

var (
	ErrIncompleteUpload = errors.New("incomplete upload")
	ErrSizeMismatch     = errors.New("chunk size mismatch")
)

// ChunkSource addresses the chunks of a session on disk
type ChunkSource interface {
	ChunkPath(sessionID string, index int) string
	SessionDir(sessionID string) string
}

// Blob is the merged file waiting to be stored
type Blob struct {
	Path        string
	Size        int64
	ContentType string
	FileName    string
}

// Remove deletes the merged file
func (b *Blob) Remove() error {
	if err := os.Remove(b.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Open opens the merged file for reading
func (b *Blob) Open() (*os.File, error) {
	return os.Open(b.Path)
}

type Assembler struct {
	tempDir string
	chunks  ChunkSource
	logger  *slog.Logger
}

func New(tempDir string, chunks ChunkSource, logger *slog.Logger) (*Assembler, error) {
	dir, err := utils.ResolvePath(tempDir)
	if err != nil {
		return nil, fmt.Errorf("resolve temp dir: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Assembler{
		tempDir: dir,
		chunks:  chunks,
		logger:  logger.With("component", "assembler"),
	}, nil
}

// Assemble concatenates the chunks of a claimed session in index order into one temp file.
// Every chunk is deleted as soon as it is copied and the session directory is removed at the end.
// On error the partial output is removed and the chunks not yet consumed stay on disk.
func (a *Assembler) Assemble(ctx context.Context, sess *chunk.Session, fileName string) (*Blob, error) {
	if err := utils.EnsureDir(a.tempDir); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}

	storedName, err := StoredFileName(fileName, time.Now())
	if err != nil {
		return nil, err
	}

	outPath := filepath.Join(a.tempDir, storedName)
	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}

	a.logger.Info("assembling", "session", sess.ID, "file", fileName, "chunks", sess.Total)

	size, err := a.merge(ctx, out, sess)
	if closeErr := out.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close output: %w", closeErr)
	}
	if err != nil {
		os.Remove(outPath)
		return nil, err
	}

	if err := os.Remove(a.chunks.SessionDir(sess.ID)); err != nil && !os.IsNotExist(err) {
		a.logger.Warn("remove session dir", "session", sess.ID, "error", err)
	}

	blob := &Blob{
		Path:        outPath,
		Size:        size,
		ContentType: utils.DetectFileContentType(outPath, fileName),
		FileName:    storedName,
	}

	a.logger.Info("assembled",
		"session", sess.ID,
		"stored", blob.FileName,
		"size", humanize.Bytes(uint64(blob.Size)),
		"contentType", blob.ContentType,
	)

	return blob, nil
}

func (a *Assembler) merge(ctx context.Context, out io.Writer, sess *chunk.Session) (int64, error) {
	var total int64

	for i := range sess.Total {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		expected, ok := sess.ChunkSize(i)
		if !ok {
			return total, fmt.Errorf("%w: chunk %d not recorded", ErrIncompleteUpload, i)
		}

		path := a.chunks.ChunkPath(sess.ID, i)
		n, err := copyChunk(out, path)
		if err != nil {
			if os.IsNotExist(err) {
				return total, fmt.Errorf("%w: chunk %d missing on disk", ErrIncompleteUpload, i)
			}
			return total, fmt.Errorf("copy chunk %d: %w", i, err)
		}

		if n != expected {
			return total, fmt.Errorf("%w: chunk %d has %d bytes, recorded %d", ErrSizeMismatch, i, n, expected)
		}

		total += n
		if err := os.Remove(path); err != nil {
			a.logger.Warn("remove chunk", "session", sess.ID, "index", i, "error", err)
		}
	}

	return total, nil
}

func copyChunk(out io.Writer, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(out, f)
}

// StoredFileName builds the "<unix>-<random>.<ext>" name of an assembled file.
// The extension comes from the client supplied name and is lower cased; names without one get none.
func StoredFileName(clientName string, now time.Time) (string, error) {
	suffix, err := utils.RandSuffix(suffixLength)
	if err != nil {
		return "", fmt.Errorf("random suffix: %w", err)
	}

	name := fmt.Sprintf("%d-%s", now.Unix(), suffix)
	if ext := safeExt(clientName); ext != "" {
		name += ext
	}
	return name, nil
}

func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if len(ext) < 2 || len(ext) > 16 {
		return ""
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return ext
}
