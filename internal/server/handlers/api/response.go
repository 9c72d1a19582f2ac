package api

import (
	"errors"

	"github.com/gin-gonic/gin"
)

// AbortWithError records err on the context for the request logger and
// answers with its message under code
func AbortWithError(ctx *gin.Context, status int, code string, err error) {
	AbortWithPublicError(ctx, status, code, err, err.Error())
}

// AbortWithPublicError records err for the request logger but answers with message only.
// Used when err carries server details (paths, hosts) the client must not see.
func AbortWithPublicError(ctx *gin.Context, status int, code string, err error, message string) {
	ctx.Abort()
	ctx.Error(err)
	ctx.PureJSON(status, &PhotoDropAPIError{
		Code:    code,
		Message: message,
	})
}

// AbortWithMessage is AbortWithError for failures that carry no underlying error
func AbortWithMessage(ctx *gin.Context, status int, code string, message string) {
	AbortWithError(ctx, status, code, errors.New(message))
}
