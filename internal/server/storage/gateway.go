package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/openmined/photodrop/internal/server/assembler"
)

type gatewayState int

const (
	stateAttemptPrimary gatewayState = iota
	stateAttemptFallback
	stateStored
	stateFatal
)

// Gateway stores blobs on the primary backend and falls back to the local one.
// Nothing is retried and nothing is written twice.
type Gateway struct {
	primary        Backend
	fallback       Backend
	primaryTimeout time.Duration
	logger         *slog.Logger
}

// NewGateway builds a gateway. A nil primary sends every blob straight to the fallback.
func NewGateway(primary Backend, fallback Backend, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		primary:  primary,
		fallback: fallback,
		logger:   logger.With("component", "storage"),
	}
}

func NewGatewayWithConfig(ctx context.Context, cfg *Config, baseURL string, logger *slog.Logger) (*Gateway, error) {
	local, err := NewLocalBackend(&cfg.Local, baseURL)
	if err != nil {
		return nil, err
	}

	var primary Backend
	if cfg.S3.Enabled() {
		s3Backend, err := NewS3BackendWithConfig(ctx, &cfg.S3, logger)
		if err != nil {
			return nil, err
		}
		primary = s3Backend
	}

	return NewGateway(primary, local, logger).WithPrimaryTimeout(cfg.S3.RequestTimeout()), nil
}

// WithPrimaryTimeout bounds each primary attempt. A primary still busy at the deadline
// counts as failed and the blob goes to the fallback. Zero disables the bound.
func (g *Gateway) WithPrimaryTimeout(d time.Duration) *Gateway {
	g.primaryTimeout = d
	return g
}

func (g *Gateway) HasPrimary() bool {
	return g.primary != nil
}

// Store persists the blob, trying the primary backend once and then the fallback.
// Only a fallback failure is an error.
func (g *Gateway) Store(ctx context.Context, blob *assembler.Blob) (*StoredObject, error) {
	params := &PutParams{
		Path:        blob.Path,
		Name:        blob.FileName,
		Size:        blob.Size,
		ContentType: blob.ContentType,
	}

	state := stateAttemptFallback
	if g.primary != nil {
		state = stateAttemptPrimary
	}

	var (
		result  *PutResult
		backend string
		err     error
	)

	for state != stateStored && state != stateFatal {
		switch state {
		case stateAttemptPrimary:
			g.logger.Info("storing on primary", "backend", g.primary.Name(), "name", params.Name, "size", humanize.Bytes(uint64(params.Size)))
			result, err = g.putPrimary(ctx, params)
			if err != nil {
				msg := "primary store failed, using fallback"
				if errors.Is(err, context.DeadlineExceeded) {
					msg = "primary store timed out, using fallback"
				}
				g.logger.Warn(msg, "backend", g.primary.Name(), "name", params.Name, "error", err)
				state = stateAttemptFallback
				continue
			}
			backend = BackendPrimary
			state = stateStored

		case stateAttemptFallback:
			result, err = g.fallback.Put(ctx, params)
			if err != nil {
				g.logger.Error("fallback store failed", "backend", g.fallback.Name(), "name", params.Name, "error", err)
				state = stateFatal
				continue
			}
			backend = BackendFallback
			state = stateStored
		}
	}

	if state == stateFatal {
		return nil, fmt.Errorf("%w: %w", ErrStoreFailed, err)
	}

	g.logger.Info("stored", "backend", backend, "url", result.URL)

	return &StoredObject{
		Backend: backend,
		URL:     result.URL,
		Key:     result.Key,
		Size:    blob.Size,
	}, nil
}

func (g *Gateway) putPrimary(ctx context.Context, params *PutParams) (*PutResult, error) {
	if g.primaryTimeout <= 0 {
		return g.primary.Put(ctx, params)
	}
	ctx, cancel := context.WithTimeout(ctx, g.primaryTimeout)
	defer cancel()
	return g.primary.Put(ctx, params)
}
