package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openmined/photodrop/internal/server/handlers/api"
	"github.com/openmined/photodrop/internal/server/handlers/photos"
	"github.com/openmined/photodrop/internal/server/middlewares"
	"github.com/openmined/photodrop/internal/version"
)

// maxChunkOverhead covers the multipart envelope and the text fields around a chunk
const maxChunkOverhead = 1 << 20

func SetupRoutes(svc *Services, cfg *Config, logger *slog.Logger) (http.Handler, error) {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.MaxMultipartMemory = 8 << 20 // 8 MiB

	r.Use(middlewares.Logger(logger))
	r.Use(gin.Recovery())
	r.Use(middlewares.Secure(cfg.HTTP.TLSEnabled()))
	r.Use(middlewares.GZIP())
	r.Use(middlewares.CORS())

	rateLimit := cfg.HTTP.RateLimit
	if rateLimit == "" {
		rateLimit = DefaultRateLimit
	}
	limiter, err := middlewares.RateLimiter(rateLimit)
	if err != nil {
		return nil, fmt.Errorf("http `rate_limit` %q: %w", rateLimit, err)
	}

	maxBody, err := cfg.Chunks.MaxChunkBytes()
	if err != nil {
		return nil, err
	}
	bodyLimit := middlewares.MaxBodySize(maxBody + maxChunkOverhead)

	photosH := photos.New(svc.Upload)

	r.GET("/", IndexHandler)
	r.GET("/healthz", HealthHandler)
	r.Static("/uploads", cfg.Storage.Local.PublicDir)

	// route used by the browser dashboard
	r.POST("/upload/chunk", limiter, bodyLimit, photosH.Upload)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/photos", limiter, bodyLimit, photosH.Upload)
		v1.GET("/photos/:id", photosH.Get)
	}

	r.NoRoute(func(c *gin.Context) {
		api.AbortWithMessage(c, http.StatusNotFound, api.CodeNotFound, "not found")
	})

	r.NoMethod(func(c *gin.Context) {
		api.AbortWithMessage(c, http.StatusMethodNotAllowed, api.CodeInvalidRequest, "method not allowed")
	})

	return r.Handler(), nil
}

func IndexHandler(ctx *gin.Context) {
	ctx.String(http.StatusOK, version.Detailed())
}

func HealthHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": version.Get(),
	})
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
