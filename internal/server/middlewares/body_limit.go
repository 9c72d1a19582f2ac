package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/photodrop/internal/server/handlers/api"
)

// MaxBodySize caps the request body, reads past the limit fail with *http.MaxBytesError
func MaxBodySize(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			api.AbortWithMessage(c, http.StatusRequestEntityTooLarge, api.CodeChunkTooLarge, "request body too large")
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
