package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/simp-lee/lendpanel/internal/middleware"
	"github.com/simp-lee/lendpanel/internal/pkg"
	"github.com/simp-lee/lendpanel/web"
)

// RouteDeps holds all dependencies needed to register routes.
type RouteDeps struct {
	// Modules require a signed-in user.
	Modules []Module
	// PublicModules are reachable without a session (sign-in, sign-out).
	PublicModules []Module

	DB         *gorm.DB
	Redis      *redis.Client // nil when the download cache is disabled
	Metrics    http.Handler  // served at /metrics when set
	Nav        []NavItem
	Mode       string // "debug" or "release"
	CSRFSecret string
	CookieName string
}

// RegisterRoutes registers all application routes on the given gin.Engine.
func RegisterRoutes(r *gin.Engine, deps *RouteDeps) error {
	if r == nil {
		return errors.New("router is nil")
	}
	if deps == nil {
		return errors.New("route dependencies are nil")
	}
	if len(deps.Modules) == 0 {
		return errors.New("at least one module is required")
	}
	if strings.TrimSpace(deps.CSRFSecret) == "" {
		return errors.New("csrf secret is required")
	}

	// Static assets
	if err := registerStaticRoutesWithError(r, deps.Mode); err != nil {
		return fmt.Errorf("register static routes: %w", err)
	}

	// Probes
	r.GET(healthPath, healthHandler(deps.DB, deps.Redis))
	if deps.Metrics != nil {
		r.GET(metricsPath, gin.WrapH(deps.Metrics))
	}

	csrf := middleware.CSRF(deps.CSRFSecret)

	// Sign-in routes; the JSON login is exempt from CSRF.
	publicAPI := r.Group("/api/v1")
	publicPages := r.Group("/", csrf)
	for i, m := range deps.PublicModules {
		if m == nil {
			return fmt.Errorf("public module at index %d is nil", i)
		}
		m.RegisterRoutes(publicAPI, publicPages)
	}

	// Everything else needs the bearer token. No handler below runs, and no
	// remote call is made, without one.
	api := r.Group("/api/v1", middleware.TokenAuth(middleware.TokenAuthConfig{
		CookieName: deps.CookieName,
		API:        true,
	}))
	pages := r.Group("/", csrf, middleware.TokenAuth(middleware.TokenAuthConfig{
		CookieName: deps.CookieName,
	}))

	pages.GET("/", homeHandler(deps.Nav))

	for i, m := range deps.Modules {
		if m == nil {
			return fmt.Errorf("module at index %d is nil", i)
		}
		m.RegisterRoutes(api, pages)
	}

	// NoRoute handler
	r.NoRoute(noRouteHandler())

	return nil
}

// homeHandler renders the dataset index.
func homeHandler(nav []NavItem) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.HTML(http.StatusOK, "home.html", gin.H{
			"Title":     "Dashboard",
			"Active":    "home",
			"Datasets":  nav,
			"CSRFToken": middleware.GetCSRFToken(c),
		})
	}
}

// healthHandler returns a handler that pings the database and, when
// configured, the redis cache.
func healthHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		status := "ok"
		code := http.StatusOK
		degrade := func() {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		dbStatus := "ok"
		if db == nil {
			dbStatus = "error"
			degrade()
		} else if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "error"
			degrade()
		}

		cacheStatus := "disabled"
		if rdb != nil {
			cacheStatus = "ok"
			if err := rdb.Ping(ctx).Err(); err != nil {
				cacheStatus = "error"
				degrade()
			}
		}

		c.JSON(code, gin.H{
			"status": status,
			"components": gin.H{
				"database": dbStatus,
				"cache":    cacheStatus,
			},
		})
	}
}

// noRouteHandler returns a handler that renders a 404 HTML page for browser
// requests or a JSON response for API clients.
func noRouteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/") {
			c.JSON(http.StatusNotFound, pkg.Response{Code: http.StatusNotFound, Message: "not found"})
			return
		}

		renderError(c, http.StatusNotFound, "not found")
	}
}

func registerStaticRoutesWithError(r *gin.Engine, mode string) error {
	if mode == "debug" {
		debugStaticFS, err := resolveDebugStaticFS()
		if err != nil {
			return fmt.Errorf("resolve debug static filesystem: %w", err)
		}
		fileServer := http.StripPrefix("/static", http.FileServer(http.FS(debugStaticFS)))
		r.GET("/static/*filepath", func(c *gin.Context) {
			fileServer.ServeHTTP(c.Writer, c.Request)
		})
		return nil
	}

	// Release mode: serve from embed.FS with cache headers.
	staticFS, err := fs.Sub(web.EmbeddedFS, "static")
	if err != nil {
		return fmt.Errorf("create sub filesystem for static assets: %w", err)
	}
	r.GET("/static/*filepath", cacheStaticHandler(http.FS(staticFS)))
	return nil
}

func resolveDebugStaticFS() (fs.FS, error) {
	_, currentFile, _, ok := runtime.Caller(0)
	if !ok {
		return nil, errors.New("resolve current file path")
	}

	projectRoot := filepath.Clean(filepath.Join(filepath.Dir(currentFile), "..", ".."))
	staticDir := filepath.Join(projectRoot, "web", "static")
	if _, err := os.Stat(staticDir); err != nil {
		return nil, fmt.Errorf("stat static directory %q: %w", staticDir, err)
	}

	return os.DirFS(staticDir), nil
}

// cacheStaticHandler wraps an http.FileSystem handler and sets a Cache-Control header
// for release mode static assets.
func cacheStaticHandler(fsys http.FileSystem) gin.HandlerFunc {
	fileServer := http.StripPrefix("/static", http.FileServer(fsys))
	return func(c *gin.Context) {
		c.Header("Cache-Control", "public, max-age=86400")
		fileServer.ServeHTTP(c.Writer, c.Request)
	}
}
