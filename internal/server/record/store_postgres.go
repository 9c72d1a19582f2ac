package record

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const photosTable = "photos"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresStore keeps records in postgres
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and applies migrations
func NewPostgresStore(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if err := Migrate(ctx, db, goose.DialectPostgres, logger.With("component", "records")); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Create(ctx context.Context, params *CreateParams) (*UploadRecord, error) {
	rec, err := newRecord(params)
	if err != nil {
		return nil, err
	}

	sqlStr, args, err := psql.
		Insert(photosTable).
		Columns("id", "name", "url", "size", "file_name", "backend", "content_type", "created_at").
		Values(rec.ID, rec.Name, rec.URL, rec.Size, rec.FileName, rec.Backend, rec.ContentType, rec.CreatedAt).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.pool.Exec(ctx, sqlStr, args...); err != nil {
		return nil, fmt.Errorf("insert photo: %w", err)
	}

	return rec, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*UploadRecord, error) {
	// ids are uuids, anything else cannot exist
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	sqlStr, args, err := psql.
		Select("id::text", "name", "url", "size", "file_name", "backend", "content_type", "created_at").
		From(photosTable).
		Where(sq.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var rec UploadRecord
	err = s.pool.QueryRow(ctx, sqlStr, args...).Scan(
		&rec.ID, &rec.Name, &rec.URL, &rec.Size, &rec.FileName, &rec.Backend, &rec.ContentType, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan photo: %w", err)
	}

	return &rec, nil
}

func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
