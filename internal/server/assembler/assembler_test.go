package assembler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/openmined/photodrop/internal/server/chunk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func setup(t *testing.T) (*chunk.Store, *Assembler) {
	t.Helper()
	dir := t.TempDir()

	store, err := chunk.NewStore(&chunk.Config{
		Dir:          filepath.Join(dir, "chunks"),
		TempDir:      filepath.Join(dir, "temp"),
		MaxChunkSize: "1MB",
		MaxChunks:    100,
		SessionTTL:   time.Hour,
	}, discard)
	require.NoError(t, err)

	asm, err := New(filepath.Join(dir, "temp"), store, discard)
	require.NoError(t, err)
	return store, asm
}

func upload(t *testing.T, store *chunk.Store, session string, order []int, parts []string) *chunk.Session {
	t.Helper()
	for _, idx := range order {
		_, err := store.Receive(context.Background(), &chunk.ChunkParams{
			SessionID: session,
			Index:     idx,
			Total:     len(parts),
			Size:      int64(len(parts[idx])),
			Body:      strings.NewReader(parts[idx]),
		})
		require.NoError(t, err)
	}
	sess, ok := store.Claim(session)
	require.True(t, ok)
	return sess
}

func TestAssemble_OrderedConcatenation(t *testing.T) {
	store, asm := setup(t)
	parts := []string{"aaaaaaaaaaaa", "bbbbbbbbbb", "cccccccc"}
	sess := upload(t, store, "holiday.jpg-30", []int{2, 0, 1}, parts)

	blob, err := asm.Assemble(context.Background(), sess, "Holiday.JPG")
	require.NoError(t, err)
	defer blob.Remove()

	data, err := os.ReadFile(blob.Path)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(parts, ""), string(data))
	assert.EqualValues(t, 30, blob.Size)
	assert.Regexp(t, regexp.MustCompile(`^\d+-[0-9a-z]{10}\.jpg$`), blob.FileName)
	assert.Equal(t, filepath.Base(blob.Path), blob.FileName)

	// chunks and the session directory are consumed
	assert.NoDirExists(t, store.SessionDir("holiday.jpg-30"))
}

func TestAssemble_DetectsContentTypeFromBytes(t *testing.T) {
	store, asm := setup(t)
	png := "\x89PNG\r\n\x1a\n" + strings.Repeat("\x00", 24)
	sess := upload(t, store, "s", []int{0, 1}, []string{png[:10], png[10:]})

	blob, err := asm.Assemble(context.Background(), sess, "not-really.jpg")
	require.NoError(t, err)
	defer blob.Remove()

	assert.Equal(t, "image/png", blob.ContentType)
}

func TestAssemble_MissingChunk(t *testing.T) {
	store, asm := setup(t)
	sess := upload(t, store, "gone", []int{0, 1, 2}, []string{"one", "two", "three"})

	require.NoError(t, os.Remove(store.ChunkPath("gone", 1)))

	_, err := asm.Assemble(context.Background(), sess, "x.bin")
	assert.ErrorIs(t, err, ErrIncompleteUpload)

	// the chunk after the gap is untouched and no output is left behind
	assert.FileExists(t, store.ChunkPath("gone", 2))
	entries, err := os.ReadDir(asm.tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAssemble_SizeMismatch(t *testing.T) {
	store, asm := setup(t)
	sess := upload(t, store, "tampered", []int{0, 1}, []string{"1234", "5678"})

	require.NoError(t, os.WriteFile(store.ChunkPath("tampered", 0), []byte("123"), 0o644))

	_, err := asm.Assemble(context.Background(), sess, "x.bin")
	assert.ErrorIs(t, err, ErrSizeMismatch)
	assert.FileExists(t, store.ChunkPath("tampered", 1))
}

func TestAssemble_Cancelled(t *testing.T) {
	store, asm := setup(t)
	sess := upload(t, store, "cancel", []int{0}, []string{"x"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := asm.Assemble(ctx, sess, "x.bin")
	assert.ErrorIs(t, err, context.Canceled)
	assert.FileExists(t, store.ChunkPath("cancel", 0))
}

func TestStoredFileName(t *testing.T) {
	now := time.Unix(1700000000, 0)

	tests := []struct {
		client string
		suffix string
	}{
		{client: "photo.jpg", suffix: ".jpg"},
		{client: "PHOTO.PNG", suffix: ".png"},
		{client: "archive.tar.gz", suffix: ".gz"},
		{client: "noext", suffix: ""},
		{client: "../../evil.sh/", suffix: ".sh"},
		{client: "weird.ex t", suffix: ""},
	}

	for _, tt := range tests {
		t.Run(tt.client, func(t *testing.T) {
			name, err := StoredFileName(tt.client, now)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(name, "1700000000-"), name)
			assert.True(t, strings.HasSuffix(name, tt.suffix), name)
			assert.Len(t, name, len(fmt.Sprintf("1700000000-%s", strings.Repeat("x", suffixLength)))+len(tt.suffix))
		})
	}
}
