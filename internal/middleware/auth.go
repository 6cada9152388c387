package middleware

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/lendpanel/internal/pkg"
)

const tokenContextKey = "auth_token"

// TokenAuthConfig configures TokenAuth.
type TokenAuthConfig struct {
	// CookieName holds the bearer token issued by the lending API.
	CookieName string

	// API selects the JSON 401 envelope instead of the sign-in page.
	API bool

	// Now is the clock used for exp checks (tests); defaults to time.Now.
	Now func() time.Time
}

// TokenAuth reads the bearer token from its cookie before any handler runs.
// A missing or expired token stops the request with 401 so no remote call
// is ever made without credentials: pages render auth/required.html, htmx
// requests are redirected to the sign-in page, and API routes get the JSON
// envelope. An expired token's cookie is cleared.
func TokenAuth(cfg TokenAuthConfig) gin.HandlerFunc {
	if cfg.CookieName == "" {
		cfg.CookieName = "token"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return func(c *gin.Context) {
		token, _ := c.Cookie(cfg.CookieName)
		token = strings.TrimSpace(token)
		if token != "" && pkg.TokenExpired(token, cfg.Now()) {
			c.SetCookie(cfg.CookieName, "", -1, "/", "", false, true)
			token = ""
		}
		if token != "" {
			c.Set(tokenContextKey, token)
			c.Next()
			return
		}

		switch {
		case cfg.API:
			c.AbortWithStatusJSON(http.StatusUnauthorized, pkg.Response{
				Code:    http.StatusUnauthorized,
				Message: "authentication required",
			})
		case pkg.IsHTMX(c):
			pkg.Redirect(c, loginURL(c))
			c.AbortWithStatus(http.StatusUnauthorized)
		default:
			c.Abort()
			renderAuthRequired(c)
		}
	}
}

// GetToken returns the bearer token stored by TokenAuth, or "".
func GetToken(c *gin.Context) string {
	if v, ok := c.Get(tokenContextKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// loginURL points at the sign-in page with a same-site return path.
func loginURL(c *gin.Context) string {
	return "/login?next=" + url.QueryEscape(c.Request.URL.RequestURI())
}

func renderAuthRequired(c *gin.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.Data(http.StatusUnauthorized, "text/plain; charset=utf-8", []byte("401 Unauthorized"))
		}
	}()
	c.HTML(http.StatusUnauthorized, "auth/required.html", gin.H{
		"Title":    "Sign in required",
		"LoginURL": loginURL(c),
	})
}
