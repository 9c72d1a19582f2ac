package middlewares

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openmined/photodrop/internal/server/handlers/api"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
)

const rateLimitPrefix = "photodrop"

// RateLimiter gives each client ip its own budget, formattedRate is like "600-M".
// Keys include the route so the dashboard and api routes are limited separately.
func RateLimiter(formattedRate string) (gin.HandlerFunc, error) {
	rate, err := limiter.NewRateFromFormatted(formattedRate)
	if err != nil {
		return nil, err
	}

	store := memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          rateLimitPrefix,
		CleanUpInterval: time.Minute,
	})

	return mgin.NewMiddleware(
		limiter.New(store, rate),
		mgin.WithKeyGetter(func(c *gin.Context) string {
			return c.ClientIP() + "|" + c.FullPath()
		}),
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			api.AbortWithMessage(c, http.StatusTooManyRequests, api.CodeRateLimited, "rate limit exceeded")
		}),
		mgin.WithErrorHandler(func(c *gin.Context, err error) {
			api.AbortWithError(c, http.StatusInternalServerError, api.CodeInternalError, err)
		}),
	), nil
}
