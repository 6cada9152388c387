package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
)

// SecureConfig configures SecureHeaders.
type SecureConfig struct {
	ContentSecurityPolicy string

	// HSTSSeconds is the Strict-Transport-Security max-age; 0 disables it.
	HSTSSeconds int64

	// Development skips HSTS so local plain-HTTP runs are not pinned.
	Development bool

	Logger *slog.Logger
}

// SecureHeaders sets the browser hardening headers on every response.
func SecureHeaders(cfg SecureConfig) gin.HandlerFunc {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: cfg.ContentSecurityPolicy,
		STSSeconds:            cfg.HSTSSeconds,
		STSIncludeSubdomains:  cfg.HSTSSeconds > 0,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         cfg.Development,
	})

	return func(c *gin.Context) {
		if err := s.Process(c.Writer, c.Request); err != nil {
			logger.WarnContext(c.Request.Context(), "secure headers blocked request", slog.Any("error", err))
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
		c.Next()
	}
}
