package storage

import (
	"context"
	"errors"
)

const (
	BackendPrimary  = "primary"
	BackendFallback = "fallback"

	keyPrefix = "photos"
)

var (
	ErrStoreFailed = errors.New("store failed")
	ErrEmptyAck    = errors.New("backend returned an empty acknowledgment")
	ErrInvalidKey  = errors.New("invalid key")
)

// Backend persists a file and tells where it can be fetched from
type Backend interface {
	// Name identifies the backend in logs
	Name() string

	// Put stores the file at params.Path under params.Name
	Put(ctx context.Context, params *PutParams) (*PutResult, error)
}

type PutParams struct {
	Path        string
	Name        string
	Size        int64
	ContentType string
}

type PutResult struct {
	Key  string
	URL  string
	ETag string
}

// StoredObject is a persisted blob. It always comes from exactly one backend.
type StoredObject struct {
	Backend string `json:"backend"`
	URL     string `json:"url"`
	Key     string `json:"key"`
	Size    int64  `json:"size"`
}
