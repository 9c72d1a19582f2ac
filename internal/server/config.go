package server

import (
	"fmt"
	"log/slog"

	"github.com/openmined/photodrop/internal/server/chunk"
	"github.com/openmined/photodrop/internal/server/record"
	"github.com/openmined/photodrop/internal/server/storage"
	"github.com/openmined/photodrop/internal/utils"
)

const (
	DefaultAddr      = "127.0.0.1:8080"
	DefaultBaseURL   = "http://127.0.0.1:8080"
	DefaultRateLimit = "600-M"
	DefaultLogDir    = ".logs"
)

type Config struct {
	HTTP    HTTPConfig     `mapstructure:"http"`
	Storage storage.Config `mapstructure:"storage"`
	Chunks  chunk.Config   `mapstructure:"chunks"`
	DB      record.Config  `mapstructure:"db"`
	LogDir  string         `mapstructure:"log_dir"`
}

func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Chunks.Validate(); err != nil {
		return err
	}
	if err := c.DB.Validate(); err != nil {
		return err
	}
	return nil
}

func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("http", &c.HTTP),
		slog.Any("storage", &c.Storage),
		slog.Any("chunks", &c.Chunks),
		slog.Any("db", &c.DB),
		slog.String("log_dir", c.LogDir),
	)
}

type HTTPConfig struct {
	Addr      string `mapstructure:"addr"`
	CertFile  string `mapstructure:"cert_file"`
	KeyFile   string `mapstructure:"key_file"`
	BaseURL   string `mapstructure:"base_url"`
	RateLimit string `mapstructure:"rate_limit"`
}

func (c *HTTPConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("http `addr` is required")
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return fmt.Errorf("http `cert_file` and `key_file` must be set together")
	}
	if !utils.IsValidURL(c.BaseURL) {
		return fmt.Errorf("http `base_url` %q is not a valid url", c.BaseURL)
	}
	return nil
}

func (c *HTTPConfig) TLSEnabled() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

func (c *HTTPConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("addr", c.Addr),
		slog.String("cert_file", c.CertFile),
		slog.String("key_file", c.KeyFile),
		slog.String("base_url", c.BaseURL),
		slog.String("rate_limit", c.RateLimit),
	)
}
