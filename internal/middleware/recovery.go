package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/lendpanel/internal/pkg"
)

// Recovery recovers from panics and answers in the shape the caller expects:
//
//   - htmx requests get a 500 with an error toast and HX-Reswap: none, so the
//     table on screen stays as it was;
//   - browser requests get the errors/500.html page;
//   - everything else gets the JSON envelope.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logger.ErrorContext(c.Request.Context(), "panic recovered",
				slog.Any("panic", rec),
				slog.String("method", c.Request.Method),
				slog.String("path", c.Request.URL.Path),
				slog.String("stack", string(debug.Stack())),
			)
			c.Abort()

			switch {
			case pkg.IsHTMX(c):
				pkg.Toast(c, "Something went wrong. Please try again.", pkg.ToastError)
				pkg.KeepContent(c)
				c.Status(http.StatusInternalServerError)
			case acceptsHTML(c):
				renderErrorPage(c, http.StatusInternalServerError, "errors/500.html")
			default:
				c.JSON(http.StatusInternalServerError, pkg.Response{
					Code:    http.StatusInternalServerError,
					Message: "internal server error",
				})
			}
		}()
		c.Next()
	}
}

// renderErrorPage renders an error template, falling back to plain text when
// no HTML renderer is configured.
func renderErrorPage(c *gin.Context, status int, name string) {
	defer func() {
		if r := recover(); r != nil {
			c.Data(status, "text/plain; charset=utf-8", []byte(http.StatusText(status)))
		}
	}()
	c.HTML(status, name, gin.H{})
}

func acceptsHTML(c *gin.Context) bool {
	return strings.Contains(strings.ToLower(c.GetHeader("Accept")), "text/html")
}
