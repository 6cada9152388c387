package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/simp-lee/logger"
	"gorm.io/gorm"

	"github.com/simp-lee/lendpanel/internal/cache"
	"github.com/simp-lee/lendpanel/internal/config"
	"github.com/simp-lee/lendpanel/internal/domain"
	"github.com/simp-lee/lendpanel/internal/middleware"
	"github.com/simp-lee/lendpanel/internal/module/auth"
	"github.com/simp-lee/lendpanel/internal/module/dataset"
	"github.com/simp-lee/lendpanel/internal/module/export"
	"github.com/simp-lee/lendpanel/internal/observability"
	"github.com/simp-lee/lendpanel/internal/remote"
	"github.com/simp-lee/lendpanel/web"
)

const (
	defaultAPITimeout   = 30 * time.Second
	defaultCacheTTL     = 2 * time.Minute
	defaultSessionTTL   = 12 * time.Hour
	defaultWriteTimeout = 60 * time.Second
	shutdownGracePeriod = 5 * time.Second

	healthPath  = "/health"
	metricsPath = "/metrics"
)

// App holds the core application dependencies and the HTTP server.
type App struct {
	engine *gin.Engine
	db     *gorm.DB
	redis  *redis.Client
	logger *logger.Logger
	cfg    *config.Config
}

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

var newHTTPServer = func(addr string, handler http.Handler, writeTimeout time.Duration) httpServer {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       120 * time.Second,
	}
}

var notifyContext = func(parent context.Context, signals ...os.Signal) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, signals...)
}

// New creates and wires a fully configured App from the given Config.
//
// It sets up logging, the export audit database, the optional redis cache,
// the lending API client, dataset/export/auth modules, middleware, template
// rendering, and routes.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	success := false

	// 1. Setup logger.
	log, err := config.SetupLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}

	if cfg.Server.Mode == gin.DebugMode && cfg.Server.Host == "0.0.0.0" {
		log.Warn("insecure server config: debug mode on 0.0.0.0 may expose debug behavior and permissive CORS")
	}
	defer func() {
		if success {
			return
		}
		if err := log.Close(); err != nil {
			slog.Error("logger close error", slog.Any("error", err))
		}
	}()

	if err := validateGinMode(cfg.Server.Mode); err != nil {
		return nil, err
	}

	// 2. Export audit database. The table is created on startup in every mode.
	db, err := config.SetupDatabase(&cfg.Database, log.Logger, &domain.ExportRecord{})
	if err != nil {
		return nil, fmt.Errorf("setup database: %w", err)
	}
	defer func() {
		if success {
			return
		}
		if err := closeDatabase(db); err != nil {
			slog.Error("database close error", slog.Any("error", err))
		}
	}()

	// 3. Download-set cache (nil client when disabled).
	rdb, err := config.SetupRedis(&cfg.Cache, log.Logger)
	if err != nil {
		return nil, fmt.Errorf("setup redis: %w", err)
	}
	defer func() {
		if success || rdb == nil {
			return
		}
		if err := rdb.Close(); err != nil {
			slog.Error("redis close error", slog.Any("error", err))
		}
	}()

	// 4. Lending API client, wrapped by the download cache.
	metrics := observability.New()
	client, err := remote.New(remote.Config{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   config.DurationOr(cfg.API.Timeout, defaultAPITimeout),
		UserAgent: cfg.API.UserAgent,
		LoginPath: cfg.API.LoginPath,
		Recorder:  metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("setup api client: %w", err)
	}
	fetcher := cache.NewDownloadCache(client, rdb, config.DurationOr(cfg.Cache.TTL, defaultCacheTTL), log.Logger, metrics)

	registry, err := dataset.NewRegistry(dataset.DefaultDatasets()...)
	if err != nil {
		return nil, fmt.Errorf("setup datasets: %w", err)
	}

	// 5. Manual dependency injection: repository → service → handler.
	exportSvc := export.NewExportService(export.NewExportRepository(db))
	datasetModule := dataset.NewModule(registry, dataset.NewDatasetHandler(registry, fetcher, exportSvc, metrics, log.Logger))
	exportModule := export.NewModule(export.NewExportHandler(exportSvc))
	authModule := auth.NewModule(auth.NewHandler(
		auth.NewService(client, config.DurationOr(cfg.Auth.CookieMaxAge, defaultSessionTTL)),
		auth.CookieConfig{Name: cfg.Auth.CookieName, Secure: cfg.Auth.CookieSecure},
	))

	// 6. Create Gin engine with custom middleware (not gin.Default()).
	gin.SetMode(cfg.Server.Mode)
	engine := gin.New()

	engine.Use(
		middleware.Recovery(log.Logger),
		middleware.RequestIDWithConfig(middleware.RequestIDConfig{
			TrustUpstream: false,
		}),
		middleware.LoggerWithConfig(middleware.LoggerConfig{
			Logger:    log.Logger,
			SkipPaths: []string{healthPath, metricsPath},
		}),
		middleware.Metrics(metrics),
	)
	if cfg.Server.SecureHeaders.Enabled {
		engine.Use(middleware.SecureHeaders(middleware.SecureConfig{
			ContentSecurityPolicy: cfg.Server.SecureHeaders.ContentSecurityPolicy,
			HSTSSeconds:           cfg.Server.SecureHeaders.HSTSSeconds,
			Development:           cfg.Server.Mode == gin.DebugMode,
			Logger:                log.Logger,
		}))
	}
	// In release mode, when no allowlist is configured, default to deny cross-origin requests.
	engine.Use(middleware.CORSWithConfig(resolveCORSConfig(cfg.Server.Mode, &cfg.Server.CORS)))
	if cfg.Server.RateLimit.Enabled {
		engine.Use(middleware.RateLimit(
			cfg.Server.RateLimit.Requests,
			config.DurationOr(cfg.Server.RateLimit.Window, time.Minute),
		))
	}

	// 7. Determine filesystem mode and set up template renderer.
	var fsys fs.FS
	if cfg.Server.Mode == gin.DebugMode {
		fsys, err = resolveDebugWebFS()
		if err != nil {
			return nil, fmt.Errorf("resolve debug template fs: %w", err)
		}
	} else {
		fsys = web.EmbeddedFS
	}

	nav := navItems(registry)
	renderer, err := NewTemplateRenderer(fsys, cfg.Server.Mode == gin.DebugMode, WithNav(nav))
	if err != nil {
		return nil, fmt.Errorf("setup template renderer: %w", err)
	}
	engine.HTMLRender = renderer

	// 8. Resolve CSRF secret.
	csrfSecret, err := resolveCSRFSecret(cfg.Server.Mode, cfg.Server.CSRFSecret)
	if err != nil {
		return nil, err
	}
	if csrfSecret != strings.TrimSpace(cfg.Server.CSRFSecret) {
		log.Warn("no csrf_secret configured, using random secret in non-release mode (will change on restart)")
	}

	// 9. Register all routes.
	if err := RegisterRoutes(engine, &RouteDeps{
		Modules:       []Module{datasetModule, exportModule},
		PublicModules: []Module{authModule},
		DB:            db,
		Redis:         rdb,
		Metrics:       metrics.Handler(),
		Nav:           nav,
		Mode:          cfg.Server.Mode,
		CSRFSecret:    csrfSecret,
		CookieName:    cfg.Auth.CookieName,
	}); err != nil {
		return nil, fmt.Errorf("register routes: %w", err)
	}

	log.Info("application configured",
		slog.String("mode", cfg.Server.Mode),
		slog.String("api", cfg.API.BaseURL),
		slog.Int("datasets", len(nav)),
		slog.Bool("cache", rdb != nil),
	)

	success = true
	return &App{
		engine: engine,
		db:     db,
		redis:  rdb,
		logger: log,
		cfg:    cfg,
	}, nil
}

func navItems(reg *dataset.Registry) []NavItem {
	configs := reg.All()
	items := make([]NavItem, 0, len(configs))
	for _, c := range configs {
		items = append(items, NavItem{Name: c.Name, Title: c.Title})
	}
	return items
}

// resolveCSRFSecret returns the configured secret, or a random one outside
// release mode when none (or a placeholder) is configured.
func resolveCSRFSecret(mode, configured string) (string, error) {
	secret := strings.TrimSpace(configured)
	if !isPlaceholderCSRFSecret(secret) {
		if mode == gin.ReleaseMode {
			if len(secret) < 32 {
				return "", errors.New("csrf_secret must be at least 32 characters in release mode")
			}
			if config.CountSecretClasses(secret) < 3 {
				return "", errors.New("csrf_secret must include at least 3 character classes in release mode")
			}
		}
		return secret, nil
	}
	if mode == gin.ReleaseMode {
		return "", errors.New("csrf_secret must be a non-placeholder value in release mode")
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate csrf secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func isPlaceholderCSRFSecret(secret string) bool {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return true
	}

	switch strings.ToLower(trimmed) {
	case "change-me-to-a-random-secret", "change-me-in-env":
		return true
	default:
		return false
	}
}

func resolveCORSConfig(mode string, cfg *config.CORSConfig) middleware.CORSConfig {
	corsConfig := middleware.DefaultCORSConfig()
	if cfg == nil {
		cfg = &config.CORSConfig{}
	}

	switch {
	case len(cfg.AllowOrigins) > 0:
		corsConfig.AllowOrigins = cfg.AllowOrigins
	case mode == gin.ReleaseMode:
		corsConfig.AllowOrigins = []string{}
	}
	if len(cfg.AllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.AllowMethods
	}
	if len(cfg.AllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.AllowHeaders
	}
	corsConfig.AllowCredentials = cfg.AllowCredentials
	if d := config.DurationOr(cfg.MaxAge, 0); d > 0 {
		corsConfig.MaxAge = fmt.Sprintf("%d", int64(d/time.Second))
	}

	return corsConfig
}

func validateGinMode(mode string) error {
	switch mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		return nil
	default:
		return fmt.Errorf("invalid server.mode %q: must be one of %q, %q, %q", mode, gin.DebugMode, gin.ReleaseMode, gin.TestMode)
	}
}

func resolveDebugWebFS() (fs.FS, error) {
	if _, file, _, ok := runtime.Caller(0); ok {
		webDir := filepath.Clean(filepath.Join(filepath.Dir(file), "..", "..", "web"))
		if stat, err := os.Stat(webDir); err == nil && stat.IsDir() {
			return os.DirFS(webDir), nil
		}
	}

	exePath, err := os.Executable()
	if err == nil {
		webDir := filepath.Join(filepath.Dir(exePath), "web")
		if stat, err := os.Stat(webDir); err == nil && stat.IsDir() {
			return os.DirFS(webDir), nil
		}
	}

	return nil, errors.New("debug web directory not found")
}

func closeDatabase(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Run starts the HTTP server and blocks until a shutdown signal is received.
// It performs graceful shutdown with a 5-second timeout, then closes the
// database and redis connections.
func (a *App) Run() error {
	if a == nil {
		return errors.New("app is nil")
	}
	if a.cfg == nil {
		return errors.New("app config is nil")
	}
	if a.engine == nil {
		return errors.New("app engine is nil")
	}

	log := slog.Default()
	if a.logger != nil {
		log = a.logger.Logger
	}

	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	srv := newHTTPServer(addr, a.engine, config.DurationOr(a.cfg.Server.Timeout, defaultWriteTimeout))

	// Listen for SIGINT / SIGTERM.
	ctx, stop := notifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("server started", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		runErr = fmt.Errorf("server error: %w", err)
	}

	if runErr == nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown error", slog.Any("error", err))
		}
	}

	if a.db != nil {
		if err := closeDatabase(a.db); err != nil {
			log.Error("database close error", slog.Any("error", err))
		} else {
			log.Info("database connection closed")
		}
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Error("redis close error", slog.Any("error", err))
		} else {
			log.Info("redis connection closed")
		}
	}

	log.Info("server stopped")
	if a.logger != nil {
		if err := a.logger.Close(); err != nil {
			slog.Error("logger close error", slog.Any("error", err))
		}
	}

	return runErr
}
