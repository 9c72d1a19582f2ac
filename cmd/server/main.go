package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/openmined/photodrop/internal/server"
	"github.com/openmined/photodrop/internal/server/chunk"
	"github.com/openmined/photodrop/internal/server/record"
	"github.com/openmined/photodrop/internal/server/storage"
	"github.com/openmined/photodrop/internal/utils"
	"github.com/openmined/photodrop/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	envPrefix   = "PHOTODROP"
	logFileName = "server.log"
)

var rootCmd = &cobra.Command{
	Use:     "photodrop",
	Short:   "PhotoDrop chunked photo upload server",
	Version: version.Detailed(),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cmd.SilenceUsage = true

		logger, closeLog, err := setupLogger(cfg.LogDir)
		if err != nil {
			return err
		}
		defer closeLog()

		logger.Info("photodrop", "version", version.Version, "revision", version.Revision, "build", version.BuildDate)
		logger.Info("config", "config", cfg)

		srv, err := server.New(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}

		defer logger.Info("Bye!")
		if err := srv.Start(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("server start", "error", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("bind", "b", server.DefaultAddr, "Address to bind the server")
	rootCmd.Flags().StringP("cert", "", "", "Path to the TLS certificate file")
	rootCmd.Flags().StringP("key", "", "", "Path to the TLS key file")
	rootCmd.Flags().StringP("base-url", "u", server.DefaultBaseURL, "Public base URL used for fallback links")
	rootCmd.Flags().String("chunks-dir", chunk.DefaultDir, "Directory holding in-flight chunks")
	rootCmd.Flags().String("public-dir", storage.DefaultPublicDir, "Directory served under /uploads")
	rootCmd.Flags().String("db-path", record.DefaultDBPath, "SQLite database path")
	rootCmd.Flags().StringP("config", "f", "", "Path to a yaml or json config file")
}

func main() {
	// Setup root context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves the server config from, in increasing precedence,
// defaults, the config file, .env and environment variables, and set flags
func loadConfig(cmd *cobra.Command) (*server.Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config read '%s': %w", path, err)
		}
	}

	v.BindPFlag("http.addr", cmd.Flags().Lookup("bind"))
	v.BindPFlag("http.cert_file", cmd.Flags().Lookup("cert"))
	v.BindPFlag("http.key_file", cmd.Flags().Lookup("key"))
	v.BindPFlag("http.base_url", cmd.Flags().Lookup("base-url"))
	v.BindPFlag("chunks.dir", cmd.Flags().Lookup("chunks-dir"))
	v.BindPFlag("storage.local.public_dir", cmd.Flags().Lookup("public-dir"))
	v.BindPFlag("db.path", cmd.Flags().Lookup("db-path"))

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg server.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key, AutomaticEnv only reaches keys viper knows about
func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", server.DefaultAddr)
	v.SetDefault("http.cert_file", "")
	v.SetDefault("http.key_file", "")
	v.SetDefault("http.base_url", server.DefaultBaseURL)
	v.SetDefault("http.rate_limit", server.DefaultRateLimit)

	v.SetDefault("storage.s3.bucket_name", "")
	v.SetDefault("storage.s3.region", "")
	v.SetDefault("storage.s3.access_key", "")
	v.SetDefault("storage.s3.secret_key", "")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.public_url", "")
	v.SetDefault("storage.s3.use_accelerate", false)
	v.SetDefault("storage.s3.public_read", false)
	v.SetDefault("storage.s3.timeout", storage.DefaultS3Timeout)
	v.SetDefault("storage.local.public_dir", storage.DefaultPublicDir)

	v.SetDefault("chunks.dir", chunk.DefaultDir)
	v.SetDefault("chunks.temp_dir", chunk.DefaultTempDir)
	v.SetDefault("chunks.max_chunk_size", chunk.DefaultMaxChunkSize)
	v.SetDefault("chunks.max_chunks", chunk.DefaultMaxChunks)
	v.SetDefault("chunks.session_ttl", chunk.DefaultSessionTTL)

	v.SetDefault("db.driver", record.DriverSQLite)
	v.SetDefault("db.path", record.DefaultDBPath)
	v.SetDefault("db.dsn", "")

	v.SetDefault("log_dir", server.DefaultLogDir)
}

// setupLogger logs to the console and to a per-run file in logDir
func setupLogger(logDir string) (*slog.Logger, func(), error) {
	if err := utils.EnsureDir(logDir); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}

	logFile := filepath.Join(logDir, logFileName)
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.RFC3339Nano,
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	logInterceptor := utils.NewLogInterceptor(file)
	fileHandler := slog.NewTextHandler(logInterceptor, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		// the interceptor stamps each line
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})

	logger := slog.New(utils.NewMultiLogHandler(stdoutHandler, fileHandler))
	slog.SetDefault(logger)

	return logger, func() {
		logInterceptor.Close()
		file.Close()
	}, nil
}
