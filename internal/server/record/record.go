package record

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openmined/photodrop/internal/db"
)

// Open returns the store selected by cfg.Driver
func Open(ctx context.Context, cfg *Config, logger *slog.Logger) (Store, error) {
	switch cfg.Driver {
	case DriverPostgres:
		return NewPostgresStore(ctx, cfg.DSN, logger)
	case DriverSQLite, "":
		sqliteDB, err := db.OpenSQLite(ctx, db.Options{Path: cfg.Path, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		store, err := NewSQLiteStore(ctx, sqliteDB, logger)
		if err != nil {
			sqliteDB.Close()
			return nil, err
		}
		store.ownsDB = true
		return store, nil
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.Driver)
	}
}
