package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/httprate"

	"github.com/simp-lee/lendpanel/internal/pkg"
)

// RateLimit caps requests per client IP with a sliding window. Rejected htmx
// requests get a toast and keep the current page; other requests get a 429
// JSON envelope.
func RateLimit(requests int, window time.Duration) gin.HandlerFunc {
	limiter := httprate.Limit(requests, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(rejectRateLimited),
	)

	return func(c *gin.Context) {
		passed := false
		limiter(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			c.Next()
		})).ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
		}
	}
}

func rejectRateLimited(w http.ResponseWriter, r *http.Request) {
	const message = "Too many requests. Slow down and try again shortly."
	if r.Header.Get("HX-Request") == "true" {
		trigger, _ := json.Marshal(map[string]any{
			"showToast": map[string]string{"message": message, "type": pkg.ToastError},
		})
		w.Header().Set("HX-Trigger", string(trigger))
		w.Header().Set("HX-Reswap", "none")
		w.WriteHeader(http.StatusTooManyRequests)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(pkg.Response{Code: http.StatusTooManyRequests, Message: "too many requests"})
}
