package chunk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/openmined/photodrop/internal/utils"
)

const (
	lockFile        = ".photodrop.lock"
	chunkFilePrefix = "chunk_"
	chunkFilePerm   = 0o644
)

// Store persists chunk payloads on disk and tracks received indices per session.
type Store struct {
	dir          string
	maxChunkSize int64
	maxChunks    int
	sessionTTL   time.Duration
	registry     *registry
	flock        *flock.Flock
	logger       *slog.Logger
}

func NewStore(cfg *Config, logger *slog.Logger) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	maxChunkSize, err := cfg.MaxChunkBytes()
	if err != nil {
		return nil, err
	}

	dir, err := utils.ResolvePath(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve chunks dir: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		dir:          dir,
		maxChunkSize: maxChunkSize,
		maxChunks:    cfg.MaxChunks,
		sessionTTL:   cfg.SessionTTL,
		registry:     newRegistry(cfg.SessionTTL),
		flock:        flock.New(filepath.Join(dir, lockFile)),
		logger:       logger.With("component", "chunks"),
	}, nil
}

// Lock takes an exclusive process lock on the chunks directory
func (s *Store) Lock() error {
	if err := utils.EnsureDir(s.dir); err != nil {
		return fmt.Errorf("create chunks dir %s: %w", s.dir, err)
	}

	locked, err := s.flock.TryLock()
	if err != nil {
		return fmt.Errorf("lock chunks dir: %w", err)
	}
	if !locked {
		return ErrChunksDirLocked
	}
	return nil
}

func (s *Store) Unlock() error {
	return s.flock.Unlock()
}

// Receive validates and persists one chunk, then records it against its session.
// A failed write leaves the session state untouched. A session whose first chunk
// fails is not kept at all.
func (s *Store) Receive(ctx context.Context, params *ChunkParams) (*Reception, error) {
	if err := s.validate(params); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sess, err := s.registry.acquire(params.SessionID, params.Total)
	if err != nil {
		return nil, err
	}
	defer s.registry.release(sess, func() {
		// only an empty directory is removed
		os.Remove(s.SessionDir(sess.ID))
	})

	sess.gate.RLock()
	defer sess.gate.RUnlock()

	if state := sess.State(); state != StateOpen {
		return nil, fmt.Errorf("%w: %s is %s", ErrSessionClosed, params.SessionID, state)
	}

	dir := s.SessionDir(params.SessionID)
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("%w: create session dir: %w", ErrStorage, err)
	}

	path := s.ChunkPath(params.SessionID, params.Index)
	body := &exactReader{r: params.Body, remaining: params.Size}
	if _, err := utils.WriteFileAtomic(path, body, chunkFilePerm); err != nil {
		if errors.Is(err, errSizeExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: payload is not %d bytes", ErrInvalidChunk, params.Size)
		}
		return nil, fmt.Errorf("%w: write chunk %d: %w", ErrStorage, params.Index, err)
	}

	received := sess.record(params.Index, params.Size)

	s.logger.Debug("chunk received",
		"session", params.SessionID,
		"index", params.Index,
		"size", humanize.Bytes(uint64(params.Size)),
		"received", received,
		"total", params.Total,
	)

	return &Reception{
		Received: received,
		Total:    params.Total,
		Complete: received == params.Total,
	}, nil
}

// Claim grants the caller the exclusive right to assemble a complete session.
// It returns false when the session is unknown, incomplete or already claimed.
func (s *Store) Claim(sessionID string) (*Session, bool) {
	sess, ok := s.registry.get(sessionID)
	if !ok {
		return nil, false
	}
	if !sess.claim() {
		return nil, false
	}
	s.logger.Debug("session claimed", "session", sessionID, "total", sess.Total)
	return sess, true
}

// Release ends the assembly of a claimed session.
// On success the session is torn down and its id tombstoned. On failure the session
// stays registered in the failed state, its remaining chunks are kept for diagnosis
// and the sweeper removes it once it expires.
func (s *Store) Release(sess *Session, ok bool) {
	if !sess.finish(ok) {
		s.logger.Warn("release of unclaimed session", "session", sess.ID, "state", sess.State())
		return
	}

	if !ok {
		s.logger.Warn("session assembly failed", "session", sess.ID)
		return
	}

	s.registry.drop(sess.ID, true)
	if err := os.RemoveAll(s.SessionDir(sess.ID)); err != nil {
		s.logger.Warn("remove session dir", "session", sess.ID, "error", err)
	}
}

// Session returns the registered session for id
func (s *Store) Session(sessionID string) (*Session, bool) {
	return s.registry.get(sessionID)
}

// SessionDir is the directory holding a session's chunks.
// Session ids are client supplied, the directory name is their sha256.
func (s *Store) SessionDir(sessionID string) string {
	sum := sha256.Sum256([]byte(sessionID))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:]))
}

func (s *Store) ChunkPath(sessionID string, index int) string {
	return filepath.Join(s.SessionDir(sessionID), chunkFilePrefix+strconv.Itoa(index))
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) validate(p *ChunkParams) error {
	switch {
	case p.SessionID == "":
		return fmt.Errorf("%w: session id required", ErrInvalidChunk)
	case p.Total <= 0:
		return fmt.Errorf("%w: total chunks must be greater than 0", ErrInvalidChunk)
	case p.Total > s.maxChunks:
		return fmt.Errorf("%w: total chunks %d exceeds limit %d", ErrInvalidChunk, p.Total, s.maxChunks)
	case p.Index < 0 || p.Index >= p.Total:
		return fmt.Errorf("%w: index %d out of range [0, %d)", ErrInvalidChunk, p.Index, p.Total)
	case p.Body == nil || p.Size <= 0:
		return fmt.Errorf("%w: empty payload", ErrInvalidChunk)
	case p.Size > s.maxChunkSize:
		return fmt.Errorf("%w: %w", ErrInvalidChunk, &TooLargeError{Size: p.Size, Limit: s.maxChunkSize})
	}
	return nil
}

// TooLargeError reports a chunk above the configured size limit
type TooLargeError struct {
	Size  int64
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("chunk of %s exceeds limit of %s", humanize.IBytes(uint64(e.Size)), humanize.IBytes(uint64(e.Limit)))
}
