package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openmined/photodrop/internal/server/assembler"
	"github.com/openmined/photodrop/internal/server/chunk"
	"github.com/openmined/photodrop/internal/server/record"
	"github.com/openmined/photodrop/internal/server/storage"
	"github.com/openmined/photodrop/internal/server/upload"
)

type Services struct {
	Chunks  *chunk.Store
	Storage *storage.Gateway
	Records record.Store
	Upload  *upload.UploadService
}

func NewServices(ctx context.Context, config *Config, logger *slog.Logger) (*Services, error) {
	chunks, err := chunk.NewStore(&config.Chunks, logger)
	if err != nil {
		return nil, fmt.Errorf("chunk store: %w", err)
	}

	asm, err := assembler.New(config.Chunks.TempDir, chunks, logger)
	if err != nil {
		return nil, fmt.Errorf("assembler: %w", err)
	}

	gateway, err := storage.NewGatewayWithConfig(ctx, &config.Storage, config.HTTP.BaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("storage gateway: %w", err)
	}

	records, err := record.Open(ctx, &config.DB, logger)
	if err != nil {
		return nil, fmt.Errorf("record store: %w", err)
	}

	return &Services{
		Chunks:  chunks,
		Storage: gateway,
		Records: records,
		Upload:  upload.NewUploadService(chunks, asm, gateway, records, logger),
	}, nil
}

func (s *Services) Start(ctx context.Context) error {
	if err := s.Upload.Start(ctx); err != nil {
		return fmt.Errorf("start upload service: %w", err)
	}
	return nil
}

func (s *Services) Shutdown(ctx context.Context) error {
	if err := s.Upload.Shutdown(ctx); err != nil {
		return fmt.Errorf("stop upload service: %w", err)
	}
	return nil
}
