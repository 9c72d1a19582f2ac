package upload

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openmined/photodrop/internal/server/chunk"
	"github.com/openmined/photodrop/internal/server/record"
)

// UploadService turns chunks into stored photos
type UploadService struct {
	chunks    *chunk.Store
	assembler Assembler
	storage   Storer
	records   record.Store
	logger    *slog.Logger
}

func NewUploadService(chunks *chunk.Store, asm Assembler, storer Storer, records record.Store, logger *slog.Logger) *UploadService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadService{
		chunks:    chunks,
		assembler: asm,
		storage:   storer,
		records:   records,
		logger:    logger.With("component", "upload"),
	}
}

// Start locks the chunks directory and starts the session sweeper
func (s *UploadService) Start(ctx context.Context) error {
	if err := s.chunks.Lock(); err != nil {
		return err
	}
	s.chunks.StartSweeper(ctx)
	return nil
}

func (s *UploadService) Shutdown(ctx context.Context) error {
	if err := s.chunks.Unlock(); err != nil {
		return fmt.Errorf("unlock chunks dir: %w", err)
	}
	return s.records.Close()
}

// UploadChunk records one chunk. The request that completes a session and wins its claim
// assembles, stores and records the photo before returning.
func (s *UploadService) UploadChunk(ctx context.Context, params *ChunkUploadParams) (*ChunkUploadResult, error) {
	if params.FileName == "" {
		return nil, fmt.Errorf("%w: file name is required", ErrInvalidUpload)
	}

	reception, err := s.chunks.Receive(ctx, &chunk.ChunkParams{
		SessionID: params.SessionID,
		Index:     params.Index,
		Total:     params.Total,
		Size:      params.Size,
		Body:      params.Body,
	})
	if err != nil {
		return nil, err
	}

	progress := &ChunkUploadResult{
		Status:   StatusChunkReceived,
		Received: reception.Received,
		Total:    reception.Total,
	}

	if !reception.Complete {
		return progress, nil
	}

	sess, ok := s.chunks.Claim(params.SessionID)
	if !ok {
		// a concurrent request completed the session and is assembling it
		return progress, nil
	}

	// once claimed the session is finished even if the client goes away
	photo, err := s.finish(context.WithoutCancel(ctx), sess, params.FileName)
	s.chunks.Release(sess, err == nil)
	if err != nil {
		return nil, err
	}

	return &ChunkUploadResult{
		Status:   StatusSuccess,
		Received: reception.Received,
		Total:    reception.Total,
		Photo:    photo,
	}, nil
}

func (s *UploadService) finish(ctx context.Context, sess *chunk.Session, fileName string) (*record.UploadRecord, error) {
	blob, err := s.assembler.Assemble(ctx, sess, fileName)
	if err != nil {
		s.logger.Error("assemble failed", "session", sess.ID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	defer func() {
		if err := blob.Remove(); err != nil {
			s.logger.Warn("remove assembled file", "path", blob.Path, "error", err)
		}
	}()

	obj, err := s.storage.Store(ctx, blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	photo, err := s.records.Create(ctx, &record.CreateParams{
		Name:           fileName,
		URL:            obj.URL,
		Size:           blob.Size,
		StoredFilename: blob.FileName,
		Backend:        obj.Backend,
		ContentType:    blob.ContentType,
	})
	if err != nil {
		s.logger.Error("record failed, stored object is orphaned", "session", sess.ID, "url", obj.URL, "backend", obj.Backend, "error", err)
		return nil, fmt.Errorf("%w: %w: %w", ErrUploadFailed, ErrRecordFailed, err)
	}

	s.logger.Info("upload completed", "id", photo.ID, "name", photo.Name, "url", photo.URL, "backend", photo.Backend)
	return photo, nil
}

// Photo returns the record with id
func (s *UploadService) Photo(ctx context.Context, id string) (*record.UploadRecord, error) {
	return s.records.Get(ctx, id)
}
