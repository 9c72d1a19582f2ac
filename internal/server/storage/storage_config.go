package storage

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/openmined/photodrop/internal/utils"
)

const (
	DefaultPublicDir = ".data/public/uploads"
	DefaultS3Timeout = 30 * time.Second
)

type Config struct {
	S3    S3Config    `mapstructure:"s3"`
	Local LocalConfig `mapstructure:"local"`
}

func (c *Config) Validate() error {
	if err := c.S3.Validate(); err != nil {
		return err
	}
	return c.Local.Validate()
}

func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("s3", &c.S3),
		slog.Any("local", &c.Local),
	)
}

// S3Config configures the primary backend. Any S3 compatible service works (AWS, MinIO, R2).
// An empty bucket name disables the primary tier.
type S3Config struct {
	BucketName    string `mapstructure:"bucket_name"`
	Region        string `mapstructure:"region"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	Endpoint      string `mapstructure:"endpoint"`
	PublicURL     string `mapstructure:"public_url"`
	UseAccelerate bool   `mapstructure:"use_accelerate"`
	PublicRead    bool   `mapstructure:"public_read"`

	// Timeout bounds one store attempt on the primary. Zero means DefaultS3Timeout.
	Timeout time.Duration `mapstructure:"timeout"`
}

func (c *S3Config) Enabled() bool {
	return c.BucketName != ""
}

// RequestTimeout is the configured timeout or its default
func (c *S3Config) RequestTimeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultS3Timeout
	}
	return c.Timeout
}

func (c *S3Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.Timeout < 0 {
		return fmt.Errorf("s3 `timeout` must not be negative")
	}
	if c.Region == "" {
		return fmt.Errorf("s3 `region` is required")
	}
	if (c.AccessKey == "") != (c.SecretKey == "") {
		return fmt.Errorf("s3 `access_key` and `secret_key` must be set together")
	}
	if c.Endpoint != "" && !utils.IsValidURL(c.Endpoint) {
		return fmt.Errorf("s3 `endpoint` %q is not a valid url", c.Endpoint)
	}
	if c.PublicURL != "" && !utils.IsValidURL(c.PublicURL) {
		return fmt.Errorf("s3 `public_url` %q is not a valid url", c.PublicURL)
	}
	return nil
}

func (c *S3Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("bucket_name", c.BucketName),
		slog.String("region", c.Region),
		slog.String("access_key", utils.MaskSecret(c.AccessKey)),
		slog.String("secret_key", utils.MaskSecret(c.SecretKey)),
		slog.String("endpoint", c.Endpoint),
		slog.String("public_url", c.PublicURL),
		slog.Bool("use_accelerate", c.UseAccelerate),
		slog.Bool("public_read", c.PublicRead),
		slog.Duration("timeout", c.RequestTimeout()),
	)
}

type LocalConfig struct {
	PublicDir string `mapstructure:"public_dir"`
}

func (c *LocalConfig) Validate() error {
	if c.PublicDir == "" {
		return fmt.Errorf("local `public_dir` is required")
	}
	return nil
}

func (c *LocalConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("public_dir", c.PublicDir),
	)
}
