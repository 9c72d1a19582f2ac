package chunk

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := NewStore(&Config{
		Dir:          filepath.Join(dir, "chunks"),
		TempDir:      filepath.Join(dir, "temp"),
		MaxChunkSize: "1KB",
		MaxChunks:    100,
		SessionTTL:   time.Hour,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return store
}

func chunkOf(session string, index, total int, data string) *ChunkParams {
	return &ChunkParams{
		SessionID: session,
		Index:     index,
		Total:     total,
		Size:      int64(len(data)),
		Body:      strings.NewReader(data),
	}
}

func TestStoreReceive_CompletesOnLastChunk(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	res, err := store.Receive(ctx, chunkOf("photo.jpg-30-1", 2, 3, "cccccccccccc"))
	require.NoError(t, err)
	assert.Equal(t, &Reception{Received: 1, Total: 3, Complete: false}, res)

	res, err = store.Receive(ctx, chunkOf("photo.jpg-30-1", 0, 3, "aaaaaaaaaa"))
	require.NoError(t, err)
	assert.Equal(t, &Reception{Received: 2, Total: 3, Complete: false}, res)

	res, err = store.Receive(ctx, chunkOf("photo.jpg-30-1", 1, 3, "bbbbbbbb"))
	require.NoError(t, err)
	assert.Equal(t, &Reception{Received: 3, Total: 3, Complete: true}, res)

	sess, ok := store.Session("photo.jpg-30-1")
	require.True(t, ok)
	assert.EqualValues(t, 30, sess.Size())

	data, err := os.ReadFile(store.ChunkPath("photo.jpg-30-1", 0))
	require.NoError(t, err)
	assert.Equal(t, "aaaaaaaaaa", string(data))
}

func TestStoreReceive_DuplicateIndexOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	res, err := store.Receive(ctx, chunkOf("dup", 0, 2, "first"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Received)

	res, err = store.Receive(ctx, chunkOf("dup", 0, 2, "second!"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Received)
	assert.False(t, res.Complete)

	data, err := os.ReadFile(store.ChunkPath("dup", 0))
	require.NoError(t, err)
	assert.Equal(t, "second!", string(data))

	sess, _ := store.Session("dup")
	size, ok := sess.ChunkSize(0)
	assert.True(t, ok)
	assert.EqualValues(t, 7, size)
}

func TestStoreReceive_Validation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		params *ChunkParams
	}{
		{name: "empty session", params: chunkOf("", 0, 1, "x")},
		{name: "zero total", params: chunkOf("s", 0, 0, "x")},
		{name: "negative index", params: chunkOf("s", -1, 2, "x")},
		{name: "index equals total", params: chunkOf("s", 2, 2, "x")},
		{name: "too many chunks", params: chunkOf("s", 0, 101, "x")},
		{name: "empty payload", params: chunkOf("s", 0, 1, "")},
		{name: "nil body", params: &ChunkParams{SessionID: "s", Index: 0, Total: 1, Size: 1}},
		{name: "too large", params: chunkOf("s", 0, 1, strings.Repeat("x", 1025))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Receive(ctx, tt.params)
			assert.ErrorIs(t, err, ErrInvalidChunk)
		})
	}

	// nothing was registered or written
	_, ok := store.Session("s")
	assert.False(t, ok)
	assert.NoDirExists(t, store.SessionDir("s"))
}

func TestStoreReceive_TooLargeError(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Receive(context.Background(), chunkOf("big", 0, 1, strings.Repeat("x", 2048)))
	var tooLarge *TooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.EqualValues(t, 1024, tooLarge.Limit)
}

func TestStoreReceive_SizeDisagreesWithBody(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	short := &ChunkParams{SessionID: "s", Index: 0, Total: 2, Size: 10, Body: strings.NewReader("abc")}
	_, err := store.Receive(ctx, short)
	assert.ErrorIs(t, err, ErrInvalidChunk)

	long := &ChunkParams{SessionID: "s", Index: 0, Total: 2, Size: 2, Body: strings.NewReader("abc")}
	_, err = store.Receive(ctx, long)
	assert.ErrorIs(t, err, ErrInvalidChunk)

	// no partial chunk bytes remain and the session was never opened
	assert.NoFileExists(t, store.ChunkPath("s", 0))
	_, ok := store.Session("s")
	assert.False(t, ok)
	assert.NoDirExists(t, store.SessionDir("s"))
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, fmt.Errorf("client went away") }

func TestStoreReceive_IOFailureLeavesStateUnchanged(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Receive(ctx, chunkOf("io", 0, 2, "ok"))
	require.NoError(t, err)

	_, err = store.Receive(ctx, &ChunkParams{SessionID: "io", Index: 1, Total: 2, Size: 4, Body: brokenReader{}})
	assert.ErrorIs(t, err, ErrStorage)

	sess, _ := store.Session("io")
	assert.Equal(t, 1, sess.Received())
	assert.False(t, sess.Has(1))
	assert.NoFileExists(t, store.ChunkPath("io", 1))
}

func TestStoreReceive_FailedFirstChunkDoesNotBindTotal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Receive(ctx, &ChunkParams{SessionID: "retry", Index: 0, Total: 2, Size: 4, Body: brokenReader{}})
	assert.ErrorIs(t, err, ErrStorage)

	_, ok := store.Session("retry")
	assert.False(t, ok)

	// the client retries with a corrected total
	rec, err := store.Receive(ctx, chunkOf("retry", 0, 3, "ok"))
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Received)
	assert.Equal(t, 3, rec.Total)

	sess, ok := store.Session("retry")
	require.True(t, ok)
	assert.Equal(t, 3, sess.Total)
}

func TestStoreReceive_FailedChunkKeepsConcurrentSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var g errgroup.Group
	for i := range 8 {
		g.Go(func() error {
			if i%2 == 0 {
				store.Receive(ctx, &ChunkParams{SessionID: "mixed", Index: i, Total: 8, Size: 4, Body: brokenReader{}})
				return nil
			}
			_, err := store.Receive(ctx, chunkOf("mixed", i, 8, "data"))
			return err
		})
	}
	require.NoError(t, g.Wait())

	sess, ok := store.Session("mixed")
	require.True(t, ok)
	assert.Equal(t, 4, sess.Received())
	for i := 1; i < 8; i += 2 {
		assert.FileExists(t, store.ChunkPath("mixed", i))
	}
}

func TestStoreReceive_TotalMismatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Receive(ctx, chunkOf("collide", 0, 3, "abc"))
	require.NoError(t, err)

	_, err = store.Receive(ctx, chunkOf("collide", 1, 4, "abc"))
	assert.ErrorIs(t, err, ErrTotalMismatch)
}

func TestStoreReceive_AnyPermutationCompletesOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for run := range 20 {
		total := 1 + rand.Intn(12)
		session := fmt.Sprintf("perm-%d", run)
		completions := 0

		for _, idx := range rand.Perm(total) {
			res, err := store.Receive(ctx, chunkOf(session, idx, total, fmt.Sprintf("chunk-%d", idx)))
			require.NoError(t, err)
			if res.Complete {
				completions++
			}
		}

		assert.Equal(t, 1, completions, "session %s with %d chunks", session, total)
	}
}

func TestStoreReceive_ConcurrentOutOfOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	const total = 50

	var wg sync.WaitGroup
	var completions atomic.Int32
	for _, idx := range rand.Perm(total) {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			res, err := store.Receive(ctx, chunkOf("concurrent", idx, total, strings.Repeat("z", idx+1)))
			if assert.NoError(t, err) && res.Complete {
				completions.Add(1)
			}
		}(idx)
	}
	wg.Wait()

	assert.EqualValues(t, 1, completions.Load())
	sess, _ := store.Session("concurrent")
	assert.Equal(t, total, sess.Received())
	assert.EqualValues(t, total*(total+1)/2, sess.Size())
}

func TestStoreClaim_ExactlyOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, ok := store.Claim("unknown")
	assert.False(t, ok)

	_, err := store.Receive(ctx, chunkOf("claim", 0, 2, "aa"))
	require.NoError(t, err)

	_, ok = store.Claim("claim")
	assert.False(t, ok, "incomplete session must not be claimable")

	_, err = store.Receive(ctx, chunkOf("claim", 1, 2, "bb"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	var winners atomic.Int32
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := store.Claim("claim"); ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, winners.Load())

	// chunks are fenced off while assembling
	_, err = store.Receive(ctx, chunkOf("claim", 1, 2, "bb"))
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestStoreRelease(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("success tears down and tombstones", func(t *testing.T) {
		_, err := store.Receive(ctx, chunkOf("ok", 0, 1, "data"))
		require.NoError(t, err)
		sess, ok := store.Claim("ok")
		require.True(t, ok)

		store.Release(sess, true)
		assert.Equal(t, StateClosed, sess.State())

		_, ok = store.Session("ok")
		assert.False(t, ok)
		assert.NoDirExists(t, store.SessionDir("ok"))

		_, err = store.Receive(ctx, chunkOf("ok", 0, 1, "data"))
		assert.ErrorIs(t, err, ErrSessionClosed)
	})

	t.Run("failure keeps chunks for diagnosis", func(t *testing.T) {
		_, err := store.Receive(ctx, chunkOf("bad", 0, 1, "data"))
		require.NoError(t, err)
		sess, ok := store.Claim("bad")
		require.True(t, ok)

		store.Release(sess, false)
		assert.Equal(t, StateFailed, sess.State())
		assert.FileExists(t, store.ChunkPath("bad", 0))

		_, err = store.Receive(ctx, chunkOf("bad", 0, 1, "data"))
		assert.ErrorIs(t, err, ErrSessionClosed)
	})
}

func TestStoreSweep(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Receive(ctx, chunkOf("stale", 0, 2, "old"))
	require.NoError(t, err)

	// an orphan from an earlier process
	orphan := filepath.Join(store.Dir(), "0123abcd")
	require.NoError(t, os.MkdirAll(orphan, 0o755))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(orphan, old, old))

	// nothing is older than an hour ago yet, except the orphan
	assert.Equal(t, 1, store.Sweep(time.Now().Add(-time.Hour)))
	assert.NoDirExists(t, orphan)
	_, ok := store.Session("stale")
	assert.True(t, ok)

	assert.Equal(t, 1, store.Sweep(time.Now().Add(time.Minute)))
	_, ok = store.Session("stale")
	assert.False(t, ok)
	assert.NoDirExists(t, store.SessionDir("stale"))

	// an expired session id may start over
	res, err := store.Receive(ctx, chunkOf("stale", 1, 2, "new"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Received)
}

func TestStoreSweep_SkipsAssembling(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Receive(context.Background(), chunkOf("busy", 0, 1, "x"))
	require.NoError(t, err)
	_, ok := store.Claim("busy")
	require.True(t, ok)

	assert.Equal(t, 0, store.Sweep(time.Now().Add(time.Hour)))
	_, ok = store.Session("busy")
	assert.True(t, ok)
}

func TestStoreLock(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Lock())
	defer store.Unlock()

	other, err := NewStore(&Config{
		Dir:          store.Dir(),
		TempDir:      t.TempDir(),
		MaxChunkSize: "1KB",
		MaxChunks:    1,
		SessionTTL:   time.Hour,
	}, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, other.Lock(), ErrChunksDirLocked)
}

func TestSessionDir_HashesUntrustedIDs(t *testing.T) {
	store := newTestStore(t)

	dir := store.SessionDir("../../etc/passwd")
	assert.Equal(t, store.Dir(), filepath.Dir(dir))
	assert.Len(t, filepath.Base(dir), 64)
	assert.NotEqual(t, store.SessionDir("a"), store.SessionDir("b"))
}

func TestExactReader(t *testing.T) {
	r := &exactReader{r: bytes.NewReader([]byte("hello")), remaining: 5}
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = io.ReadAll(&exactReader{r: bytes.NewReader([]byte("hello")), remaining: 4})
	assert.ErrorIs(t, err, errSizeExceeded)

	_, err = io.ReadAll(&exactReader{r: bytes.NewReader([]byte("hello")), remaining: 6})
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
