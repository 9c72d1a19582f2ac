package record

import (
	"fmt"
	"log/slog"

	"github.com/openmined/photodrop/internal/utils"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	DefaultDBPath = ".data/photodrop.db"
)

type Config struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
}

func (c *Config) Validate() error {
	switch c.Driver {
	case DriverSQLite, "":
		if c.Path == "" {
			return fmt.Errorf("db `path` is required for sqlite")
		}
	case DriverPostgres:
		if c.DSN == "" {
			return fmt.Errorf("db `dsn` is required for postgres")
		}
	default:
		return fmt.Errorf("db `driver` must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Driver)
	}
	return nil
}

func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("driver", c.Driver),
		slog.String("path", c.Path),
		slog.String("dsn", utils.MaskURLPassword(c.DSN)),
	)
}
