package photos

import (
	"context"

	"github.com/openmined/photodrop/internal/server/record"
	"github.com/openmined/photodrop/internal/server/upload"
)

// PhotoService is the part of upload.UploadService the handler needs
type PhotoService interface {
	UploadChunk(ctx context.Context, params *upload.ChunkUploadParams) (*upload.ChunkUploadResult, error)
	Photo(ctx context.Context, id string) (*record.UploadRecord, error)
}

// UploadChunkRequest is the multipart form of one chunk, next to the "file" part
type UploadChunkRequest struct {
	FileID      string `form:"fileId" binding:"required"`
	ChunkIndex  *int   `form:"chunkIndex" binding:"required,min=0"`
	TotalChunks int    `form:"totalChunks" binding:"required,gt=0"`
	FileName    string `form:"fileName" binding:"required"`
}

type ChunkReceivedResponse struct {
	Status   string `json:"status"`
	Received int    `json:"received"`
	Total    int    `json:"total"`
}

type PhotoSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

type UploadCompleteResponse struct {
	Status string        `json:"status"`
	Photo  *PhotoSummary `json:"photo"`
}

type PhotoResponse struct {
	Photo *record.UploadRecord `json:"photo"`
}
