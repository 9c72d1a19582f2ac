package middlewares

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// GZIP compresses json responses. Stored photos are already compressed and
// served as is.
func GZIP() gin.HandlerFunc {
	return gzip.Gzip(
		gzip.DefaultCompression,
		gzip.WithExcludedPaths([]string{"/healthz"}),
		gzip.WithExcludedPathsRegexs([]string{`^/uploads/`}),
		gzip.WithExcludedExtensions([]string{
			".jpg", ".jpeg", ".png", ".gif", ".webp", ".heic", ".heif", ".avif",
		}),
	)
}
