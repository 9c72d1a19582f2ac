package api

const (
	// Generic request/server errors
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeRateLimited    = "E_RATE_LIMITED"    // rate limit exceeded
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error
	CodeNotFound       = "E_NOT_FOUND"       // no such route

	// Upload errors
	CodeChunkTooLarge   = "E_CHUNK_TOO_LARGE"  // a chunk exceeds the configured size limit.
	CodeSessionConflict = "E_SESSION_CONFLICT" // the chunk disagrees with its session (total mismatch) or the session is closed.
	CodeUploadFailed    = "E_UPLOAD_FAILED"    // a failure while persisting a chunk or the assembled file.

	// Photo errors
	CodePhotoNotFound = "E_PHOTO_NOT_FOUND" // the specified photo record could not be found.
)
