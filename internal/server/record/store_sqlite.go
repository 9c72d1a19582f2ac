package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
)

const (
	insertPhotoSQL = `
INSERT INTO photos (id, name, url, size, file_name, backend, content_type, created_at)
VALUES (:id, :name, :url, :size, :file_name, :backend, :content_type, :created_at)`

	selectPhotoSQL = `
SELECT id, name, url, size, file_name, backend, content_type, created_at
FROM photos
WHERE id = ?`
)

// sqliteRow keeps timestamps as RFC3339 text so both sqlite drivers scan them the same way
type sqliteRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	URL         string `db:"url"`
	Size        int64  `db:"size"`
	FileName    string `db:"file_name"`
	Backend     string `db:"backend"`
	ContentType string `db:"content_type"`
	CreatedAt   string `db:"created_at"`
}

func (r *sqliteRow) record() (*UploadRecord, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", r.CreatedAt, err)
	}
	return &UploadRecord{
		ID:          r.ID,
		Name:        r.Name,
		URL:         r.URL,
		Size:        r.Size,
		FileName:    r.FileName,
		Backend:     r.Backend,
		ContentType: r.ContentType,
		CreatedAt:   createdAt,
	}, nil
}

// SQLiteStore keeps records in the server's sqlite database
type SQLiteStore struct {
	db     *sqlx.DB
	ownsDB bool
}

// NewSQLiteStore migrates db and returns a store on top of it
func NewSQLiteStore(ctx context.Context, db *sqlx.DB, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := Migrate(ctx, db.DB, goose.DialectSQLite3, logger.With("component", "records")); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Create(ctx context.Context, params *CreateParams) (*UploadRecord, error) {
	rec, err := newRecord(params)
	if err != nil {
		return nil, err
	}

	row := &sqliteRow{
		ID:          rec.ID,
		Name:        rec.Name,
		URL:         rec.URL,
		Size:        rec.Size,
		FileName:    rec.FileName,
		Backend:     rec.Backend,
		ContentType: rec.ContentType,
		CreatedAt:   rec.CreatedAt.Format(time.RFC3339Nano),
	}

	if _, err := s.db.NamedExecContext(ctx, insertPhotoSQL, row); err != nil {
		return nil, fmt.Errorf("insert photo: %w", err)
	}

	return rec, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*UploadRecord, error) {
	var row sqliteRow
	if err := s.db.GetContext(ctx, &row, selectPhotoSQL, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select photo: %w", err)
	}
	return row.record()
}

// Close closes the database only when the store opened it
func (s *SQLiteStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}
