package record

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/openmined/photodrop/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	sqliteDB, err := db.OpenSQLite(context.Background(), db.Options{Logger: discard})
	require.NoError(t, err)
	t.Cleanup(func() { sqliteDB.Close() })

	store, err := NewSQLiteStore(context.Background(), sqliteDB, discard)
	require.NoError(t, err)
	return store
}

func photoParams(name string) *CreateParams {
	return &CreateParams{
		Name:           name,
		URL:            "https://cdn.example.com/photos/1700000000-abcdefghij.jpg",
		Size:           30,
		StoredFilename: "1700000000-abcdefghij.jpg",
		Backend:        "primary",
		ContentType:    "image/jpeg",
	}
}

func TestSQLiteStore_CreateAndGet(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, photoParams("holiday.jpg"))
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "holiday.jpg", rec.Name)
	assert.EqualValues(t, 30, rec.Size)
	assert.False(t, rec.CreatedAt.IsZero())

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.URL, got.URL)
	assert.Equal(t, rec.FileName, got.FileName)
	assert.Equal(t, rec.Backend, got.Backend)
	assert.Equal(t, rec.ContentType, got.ContentType)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
}

func TestSQLiteStore_GetNotFound(t *testing.T) {
	store := newSQLiteStore(t)

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_CreateValidates(t *testing.T) {
	store := newSQLiteStore(t)

	params := photoParams("")
	_, err := store.Create(context.Background(), params)
	assert.ErrorIs(t, err, ErrInvalidRecord)

	params = photoParams("x.jpg")
	params.URL = ""
	_, err = store.Create(context.Background(), params)
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestSQLiteStore_StoredFilenameUnique(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, photoParams("a.jpg"))
	require.NoError(t, err)

	_, err = store.Create(ctx, photoParams("b.jpg"))
	assert.Error(t, err)
}

func TestSQLiteStore_ConcurrentCreates(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]string, 20)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			params := photoParams(fmt.Sprintf("%d.jpg", i))
			params.StoredFilename = fmt.Sprintf("1700000000-%010d.jpg", i)
			rec, err := store.Create(ctx, params)
			if assert.NoError(t, err) {
				ids[i] = rec.ID
			}
		}(i)
	}
	wg.Wait()

	var count int
	require.NoError(t, store.db.Get(&count, "SELECT COUNT(*) FROM photos"))
	assert.Equal(t, 20, count)
}

func TestOpen_SQLiteFile(t *testing.T) {
	ctx := context.Background()
	cfg := &Config{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "photodrop.db")}

	store, err := Open(ctx, cfg, discard)
	require.NoError(t, err)
	rec, err := store.Create(ctx, photoParams("persist.jpg"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// migrations are idempotent and data survives a reopen
	store, err = Open(ctx, cfg, discard)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "persist.jpg", got.Name)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, (&Config{Driver: DriverSQLite, Path: "x.db"}).Validate())
	assert.NoError(t, (&Config{Path: "x.db"}).Validate())
	assert.Error(t, (&Config{Driver: DriverSQLite}).Validate())
	assert.Error(t, (&Config{Driver: DriverPostgres}).Validate())
	assert.NoError(t, (&Config{Driver: DriverPostgres, DSN: "postgres://u:p@localhost/db"}).Validate())
	assert.Error(t, (&Config{Driver: "mysql"}).Validate())
}
