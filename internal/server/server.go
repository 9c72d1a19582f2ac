package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openmined/photodrop/internal/version"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

type Server struct {
	config *Config
	server *http.Server
	svc    *Services
	logger *slog.Logger
}

func New(ctx context.Context, config *Config, logger *slog.Logger) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	svc, err := NewServices(ctx, config, logger)
	if err != nil {
		return nil, err
	}

	handler, err := SetupRoutes(svc, config, logger)
	if err != nil {
		return nil, err
	}

	return &Server{
		config: config,
		svc:    svc,
		logger: logger,
		server: &http.Server{
			Addr:              config.HTTP.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Start runs the server until ctx is done
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("photodrop server start", "version", version.Detailed(), "config", s.config)
	defer s.logger.Info("photodrop server stop")

	if err := s.svc.Start(ctx); err != nil {
		return err
	}

	if !s.svc.Storage.HasPrimary() {
		s.logger.Warn("no s3 bucket configured, photos are stored locally", "dir", s.config.Storage.Local.PublicDir)
	}

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if err := s.runHttpServer(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		s.logger.Info("photodrop shutdown signal")
		return s.Stop(context.WithoutCancel(ctx))
	})

	return eg.Wait()
}

func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs []error
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := s.svc.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Server) runHttpServer() error {
	if s.config.HTTP.TLSEnabled() {
		s.logger.Info("server start https", "addr", s.config.HTTP.Addr, "cert", s.config.HTTP.CertFile, "key", s.config.HTTP.KeyFile)
		return s.server.ListenAndServeTLS(s.config.HTTP.CertFile, s.config.HTTP.KeyFile)
	}
	s.logger.Info("server start http", "addr", s.config.HTTP.Addr)
	return s.server.ListenAndServe()
}
