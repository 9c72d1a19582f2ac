package chunk

import (
	"errors"
	"io"
)

var (
	ErrInvalidChunk    = errors.New("invalid chunk")
	ErrTotalMismatch   = errors.New("total chunks does not match the session")
	ErrSessionClosed   = errors.New("upload session is closed")
	ErrStorage         = errors.New("chunk storage error")
	ErrChunksDirLocked = errors.New("chunks directory locked by another process")
)

// ChunkParams describes one inbound chunk
type ChunkParams struct {
	SessionID string
	Index     int
	Total     int
	Size      int64
	Body      io.Reader
}

// Reception is the session progress after a chunk was recorded
type Reception struct {
	Received int
	Total    int
	Complete bool
}
