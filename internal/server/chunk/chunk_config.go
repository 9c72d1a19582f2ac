package chunk

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/docker/go-units"
)

const (
	DefaultDir          = ".data/chunks"
	DefaultTempDir      = ".data/temp"
	DefaultMaxChunkSize = "8MB"
	DefaultMaxChunks    = 10000
	DefaultSessionTTL   = 24 * time.Hour
)

type Config struct {
	Dir          string        `mapstructure:"dir"`
	TempDir      string        `mapstructure:"temp_dir"`
	MaxChunkSize string        `mapstructure:"max_chunk_size"`
	MaxChunks    int           `mapstructure:"max_chunks"`
	SessionTTL   time.Duration `mapstructure:"session_ttl"`
}

func (c *Config) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("chunks `dir` is required")
	}
	if c.TempDir == "" {
		return fmt.Errorf("chunks `temp_dir` is required")
	}
	if _, err := c.MaxChunkBytes(); err != nil {
		return err
	}
	if c.MaxChunks <= 0 {
		return fmt.Errorf("chunks `max_chunks` must be greater than 0")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("chunks `session_ttl` must be greater than 0")
	}
	return nil
}

func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("dir", c.Dir),
		slog.String("temp_dir", c.TempDir),
		slog.String("max_chunk_size", c.MaxChunkSize),
		slog.Int("max_chunks", c.MaxChunks),
		slog.Duration("session_ttl", c.SessionTTL),
	)
}

// MaxChunkBytes parses MaxChunkSize ("8MB", "512KiB", ...) into bytes
func (c *Config) MaxChunkBytes() (int64, error) {
	n, err := units.RAMInBytes(c.MaxChunkSize)
	if err != nil {
		return 0, fmt.Errorf("chunks `max_chunk_size` %q: %w", c.MaxChunkSize, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("chunks `max_chunk_size` must be greater than 0")
	}
	return n, nil
}
