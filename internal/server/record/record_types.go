package record

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrInvalidRecord = errors.New("invalid record")
)

// Store persists upload records
type Store interface {
	// Create inserts exactly one record
	Create(ctx context.Context, params *CreateParams) (*UploadRecord, error)

	// Get returns the record with id, or ErrNotFound
	Get(ctx context.Context, id string) (*UploadRecord, error)

	Close() error
}

// UploadRecord describes a stored upload
type UploadRecord struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	URL         string    `json:"url" db:"url"`
	Size        int64     `json:"size" db:"size"`
	FileName    string    `json:"fileName" db:"file_name"`
	Backend     string    `json:"backend" db:"backend"`
	ContentType string    `json:"contentType" db:"content_type"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

type CreateParams struct {
	Name           string
	URL            string
	Size           int64
	StoredFilename string
	Backend        string
	ContentType    string
}

func (p *CreateParams) validate() error {
	switch {
	case p.Name == "":
		return errors.Join(ErrInvalidRecord, errors.New("name is required"))
	case p.URL == "":
		return errors.Join(ErrInvalidRecord, errors.New("url is required"))
	case p.StoredFilename == "":
		return errors.Join(ErrInvalidRecord, errors.New("stored filename is required"))
	case p.Size < 0:
		return errors.Join(ErrInvalidRecord, errors.New("size must not be negative"))
	}
	return nil
}

// newRecord fills in the generated fields of a record
func newRecord(params *CreateParams) (*UploadRecord, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	id, err := newID()
	if err != nil {
		return nil, err
	}

	return &UploadRecord{
		ID:          id,
		Name:        params.Name,
		URL:         params.URL,
		Size:        params.Size,
		FileName:    params.StoredFilename,
		Backend:     params.Backend,
		ContentType: params.ContentType,
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}, nil
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return id.String(), nil
}
