package photos

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/photodrop/internal/server/assembler"
	"github.com/openmined/photodrop/internal/server/chunk"
	"github.com/openmined/photodrop/internal/server/handlers/api"
	"github.com/openmined/photodrop/internal/server/record"
	"github.com/openmined/photodrop/internal/server/storage"
	"github.com/openmined/photodrop/internal/server/upload"
)

type PhotosHandler struct {
	svc PhotoService
}

func New(svc PhotoService) *PhotosHandler {
	return &PhotosHandler{svc: svc}
}

// Upload accepts one chunk of a photo. The response carries the photo once the last chunk is in.
func (h *PhotosHandler) Upload(ctx *gin.Context) {
	var req UploadChunkRequest
	if err := ctx.ShouldBind(&req); err != nil {
		abortWithFormError(ctx, fmt.Errorf("invalid request: %w", err))
		return
	}

	file, err := ctx.FormFile("file")
	if err != nil {
		abortWithFormError(ctx, fmt.Errorf("invalid file: %w", err))
		return
	}

	if file.Size <= 0 {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, errors.New("invalid file: size is 0"))
		return
	}

	fd, err := file.Open()
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("invalid file: %w", err))
		return
	}
	defer fd.Close()

	res, err := h.svc.UploadChunk(ctx.Request.Context(), &upload.ChunkUploadParams{
		SessionID: req.FileID,
		Index:     *req.ChunkIndex,
		Total:     req.TotalChunks,
		FileName:  req.FileName,
		Size:      file.Size,
		Body:      fd,
	})
	if err != nil {
		status, code := uploadErrorStatus(err)
		if status == http.StatusInternalServerError {
			api.AbortWithPublicError(ctx, status, code, err, uploadFailureMessage(err))
			return
		}
		api.AbortWithError(ctx, status, code, err)
		return
	}

	if res.Status != upload.StatusSuccess {
		ctx.PureJSON(http.StatusOK, &ChunkReceivedResponse{
			Status:   res.Status,
			Received: res.Received,
			Total:    res.Total,
		})
		return
	}

	ctx.PureJSON(http.StatusOK, &UploadCompleteResponse{
		Status: res.Status,
		Photo: &PhotoSummary{
			ID:   res.Photo.ID,
			Name: res.Photo.Name,
			URL:  res.Photo.URL,
			Size: res.Photo.Size,
		},
	})
}

func (h *PhotosHandler) Get(ctx *gin.Context) {
	id := ctx.Param("id")

	photo, err := h.svc.Photo(ctx.Request.Context(), id)
	if errors.Is(err, record.ErrNotFound) {
		api.AbortWithError(ctx, http.StatusNotFound, api.CodePhotoNotFound, fmt.Errorf("photo %q not found", id))
		return
	} else if err != nil {
		api.AbortWithPublicError(ctx, http.StatusInternalServerError, api.CodeInternalError, err, "failed to load photo")
		return
	}

	ctx.PureJSON(http.StatusOK, &PhotoResponse{Photo: photo})
}

func abortWithFormError(ctx *gin.Context, err error) {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		api.AbortWithError(ctx, http.StatusRequestEntityTooLarge, api.CodeChunkTooLarge, err)
		return
	}
	api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
}

func uploadErrorStatus(err error) (int, string) {
	var tooLarge *chunk.TooLargeError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, api.CodeChunkTooLarge
	case errors.Is(err, chunk.ErrInvalidChunk), errors.Is(err, upload.ErrInvalidUpload):
		return http.StatusBadRequest, api.CodeInvalidRequest
	case errors.Is(err, chunk.ErrTotalMismatch), errors.Is(err, chunk.ErrSessionClosed):
		return http.StatusConflict, api.CodeSessionConflict
	default:
		return http.StatusInternalServerError, api.CodeUploadFailed
	}
}

// failure causes safe to show to clients, most specific first
var publicCauses = []error{
	chunk.ErrStorage,
	assembler.ErrIncompleteUpload,
	assembler.ErrSizeMismatch,
	storage.ErrStoreFailed,
	upload.ErrRecordFailed,
}

// uploadFailureMessage names the failed step without the wrapped details
func uploadFailureMessage(err error) string {
	for _, cause := range publicCauses {
		if errors.Is(err, cause) {
			return fmt.Sprintf("%s: %s", upload.ErrUploadFailed, cause)
		}
	}
	return upload.ErrUploadFailed.Error()
}
