package upload

import (
	"context"
	"errors"
	"io"

	"github.com/openmined/photodrop/internal/server/assembler"
	"github.com/openmined/photodrop/internal/server/chunk"
	"github.com/openmined/photodrop/internal/server/record"
	"github.com/openmined/photodrop/internal/server/storage"
)

const (
	StatusChunkReceived = "chunk_received"
	StatusSuccess       = "success"
)

var (
	ErrUploadFailed  = errors.New("upload failed")
	ErrInvalidUpload = errors.New("invalid upload")
	ErrRecordFailed  = errors.New("metadata record failed")
)

type Assembler interface {
	Assemble(ctx context.Context, sess *chunk.Session, fileName string) (*assembler.Blob, error)
}

type Storer interface {
	Store(ctx context.Context, blob *assembler.Blob) (*storage.StoredObject, error)
}

// ChunkUploadParams is one chunk of a client upload
type ChunkUploadParams struct {
	SessionID string
	Index     int
	Total     int
	FileName  string
	Size      int64
	Body      io.Reader
}

// ChunkUploadResult is either the session progress or, for the request that completed it, the record
type ChunkUploadResult struct {
	Status   string
	Received int
	Total    int
	Photo    *record.UploadRecord
}
