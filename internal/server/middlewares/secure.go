package middlewares

import (
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
)

const hstsMaxAge = 365 * 24 * 60 * 60

// Secure sets the browser hardening headers. With tls it also redirects
// plain http and sends HSTS.
func Secure(tls bool) gin.HandlerFunc {
	cfg := secure.Config{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'; img-src 'self'; frame-ancestors 'none'",
	}
	if tls {
		cfg.SSLRedirect = true
		cfg.STSSeconds = hstsMaxAge
		cfg.STSIncludeSubdomains = true
		cfg.SSLProxyHeaders = map[string]string{"X-Forwarded-Proto": "https"}
	}
	return secure.New(cfg)
}
