package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/openmined/photodrop/internal/utils"
)

const localURLPrefix = "uploads"

// LocalBackend copies files into a public directory served at <baseURL>/uploads/
type LocalBackend struct {
	dir     string
	baseURL string
}

func NewLocalBackend(cfg *LocalConfig, baseURL string) (*LocalBackend, error) {
	dir, err := utils.ResolvePath(cfg.PublicDir)
	if err != nil {
		return nil, fmt.Errorf("resolve public dir: %w", err)
	}
	return &LocalBackend{dir: dir, baseURL: baseURL}, nil
}

func (l *LocalBackend) Name() string {
	return "local"
}

func (l *LocalBackend) Dir() string {
	return l.dir
}

func (l *LocalBackend) Put(ctx context.Context, params *PutParams) (*PutResult, error) {
	if !ValidateName(params.Name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, params.Name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dst := filepath.Join(l.dir, params.Name)
	n, err := utils.CopyFile(params.Path, dst)
	if err != nil {
		return nil, fmt.Errorf("copy to %s: %w", dst, err)
	}
	if n != params.Size {
		return nil, fmt.Errorf("copy to %s: wrote %d of %d bytes", dst, n, params.Size)
	}

	return &PutResult{
		Key: params.Name,
		URL: utils.JoinURL(l.baseURL, localURLPrefix, params.Name),
	}, nil
}
