// Package db opens the embedded SQLite database backing the photo records.
package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/photodrop/internal/utils"
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

const defaultBusyTimeout = 5 * time.Second

type Options struct {
	// Path of the database file, MemoryPath when empty
	Path string
	// BusyTimeout bounds how long a writer waits on a locked database
	BusyTimeout time.Duration
	// MaxOpenConns caps the pool, zero leaves it unlimited. Ignored in memory.
	MaxOpenConns int
	Logger       *slog.Logger
}

// OpenSQLite connects to the database described by opts and applies the connection pragmas
func OpenSQLite(ctx context.Context, opts Options) (*sqlx.DB, error) {
	if opts.Path == "" {
		opts.Path = MemoryPath
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = defaultBusyTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	inMemory := opts.Path == MemoryPath

	dsn := MemoryPath
	if !inMemory {
		if err := utils.EnsureParent(opts.Path); err != nil {
			return nil, fmt.Errorf("ensure parent directory: %w", err)
		}
		dsn = "file:" + opts.Path + "?_txlock=immediate&mode=rwc"
	}

	db, err := sqlx.ConnectContext(ctx, driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", opts.Path, err)
	}

	if inMemory {
		// each connection to :memory: is its own database
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		if opts.MaxOpenConns > 0 {
			db.SetMaxOpenConns(opts.MaxOpenConns)
		}
		db.SetMaxIdleConns(2)
	}

	if _, err := db.ExecContext(ctx, pragmas(inMemory, opts.BusyTimeout)); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	opts.Logger.Info("sqlite opened", "driver", driverID, "path", opts.Path)
	return db, nil
}

func pragmas(inMemory bool, busyTimeout time.Duration) string {
	var b strings.Builder
	if !inMemory {
		b.WriteString("PRAGMA journal_mode=WAL;\n")
		b.WriteString("PRAGMA synchronous=NORMAL;\n")
	}
	fmt.Fprintf(&b, "PRAGMA busy_timeout=%d;\n", busyTimeout.Milliseconds())
	b.WriteString("PRAGMA foreign_keys=ON;\n")
	b.WriteString("PRAGMA temp_store=MEMORY;\n")
	return b.String()
}
