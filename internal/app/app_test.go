package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/simp-lee/logger"
	"gorm.io/gorm"

	"github.com/simp-lee/lendpanel/internal/config"
	"github.com/simp-lee/lendpanel/internal/middleware"
)

const strongSecret = "Abcd1234!Abcd1234!Abcd1234!Abcd1234!"

type fakeHTTPServer struct {
	listenErr      error
	listenStarted  chan struct{}
	shutdownCalled bool
	stopCh         chan struct{}
	mu             sync.Mutex
}

func (f *fakeHTTPServer) ListenAndServe() error {
	if f.listenStarted != nil {
		close(f.listenStarted)
	}
	if f.listenErr != nil {
		return f.listenErr
	}
	if f.stopCh != nil {
		<-f.stopCh
		return http.ErrServerClosed
	}
	return http.ErrServerClosed
}

func (f *fakeHTTPServer) Shutdown(context.Context) error {
	f.mu.Lock()
	f.shutdownCalled = true
	f.mu.Unlock()
	if f.stopCh != nil {
		close(f.stopCh)
	}
	return nil
}

func (f *fakeHTTPServer) wasShutdownCalled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shutdownCalled
}

func testAppConfig(mode, csrfSecret string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:       "127.0.0.1",
			Port:       8080,
			Mode:       mode,
			CSRFSecret: csrfSecret,
		},
		API: config.APIConfig{
			BaseURL: "https://lending.example.com/api",
		},
		Auth: config.AuthConfig{
			CookieName: "token",
		},
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			SQLite: config.SQLiteConfig{Path: "file::memory:?cache=shared"},
		},
		Log: config.LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func cleanupTestApp(t *testing.T, a *App) {
	t.Helper()
	if a == nil {
		return
	}
	_ = closeDatabase(a.db)
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.logger != nil {
		_ = a.logger.Close()
	}
}

func TestResolveCORSConfig(t *testing.T) {
	tests := []struct {
		name            string
		mode            string
		corsCfg         *config.CORSConfig
		wantOrigins     []string
		wantMethods     []string
		wantHeaders     []string
		wantCredentials bool
		wantMaxAge      string
	}{
		{
			name:        "debug mode uses permissive default when not configured",
			mode:        gin.DebugMode,
			corsCfg:     &config.CORSConfig{},
			wantOrigins: []string{"*"},
		},
		{
			name:        "release mode denies cross-origin when not configured",
			mode:        gin.ReleaseMode,
			corsCfg:     &config.CORSConfig{},
			wantOrigins: []string{},
		},
		{
			name: "release mode uses explicit allowlist",
			mode: gin.ReleaseMode,
			corsCfg: &config.CORSConfig{
				AllowOrigins: []string{"https://ops.example.com"},
			},
			wantOrigins: []string{"https://ops.example.com"},
		},
		{
			name: "config with AllowMethods and AllowHeaders",
			mode: gin.DebugMode,
			corsCfg: &config.CORSConfig{
				AllowMethods: []string{"GET", "POST"},
				AllowHeaders: []string{"Authorization", "Content-Type"},
			},
			wantOrigins: []string{"*"},
			wantMethods: []string{"GET", "POST"},
			wantHeaders: []string{"Authorization", "Content-Type"},
		},
		{
			name: "config with AllowCredentials true",
			mode: gin.ReleaseMode,
			corsCfg: &config.CORSConfig{
				AllowOrigins:     []string{"https://example.com"},
				AllowCredentials: true,
			},
			wantOrigins:     []string{"https://example.com"},
			wantCredentials: true,
		},
		{
			name: "config with MaxAge",
			mode: gin.ReleaseMode,
			corsCfg: &config.CORSConfig{
				AllowOrigins: []string{"https://example.com"},
				MaxAge:       "12h",
			},
			wantOrigins: []string{"https://example.com"},
			wantMaxAge:  "43200",
		},
	}

	defaults := middleware.DefaultCORSConfig()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := resolveCORSConfig(tt.mode, tt.corsCfg)

			assertStrings(t, "AllowOrigins", cfg.AllowOrigins, tt.wantOrigins)

			wantMethods := tt.wantMethods
			if wantMethods == nil {
				wantMethods = defaults.AllowMethods
			}
			assertStrings(t, "AllowMethods", cfg.AllowMethods, wantMethods)

			wantHeaders := tt.wantHeaders
			if wantHeaders == nil {
				wantHeaders = defaults.AllowHeaders
			}
			assertStrings(t, "AllowHeaders", cfg.AllowHeaders, wantHeaders)

			if cfg.AllowCredentials != tt.wantCredentials {
				t.Fatalf("AllowCredentials = %v, want %v", cfg.AllowCredentials, tt.wantCredentials)
			}

			wantMaxAge := tt.wantMaxAge
			if wantMaxAge == "" {
				wantMaxAge = defaults.MaxAge
			}
			if cfg.MaxAge != wantMaxAge {
				t.Fatalf("MaxAge = %q, want %q", cfg.MaxAge, wantMaxAge)
			}
		})
	}
}

func assertStrings(t *testing.T, field string, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s = %v, want %v", field, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("%s[%d] = %q, want %q", field, i, got[i], want[i])
		}
	}
}

func TestValidateGinMode(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		wantErr bool
	}{
		{name: "debug mode", mode: gin.DebugMode, wantErr: false},
		{name: "release mode", mode: gin.ReleaseMode, wantErr: false},
		{name: "test mode", mode: gin.TestMode, wantErr: false},
		{name: "invalid mode", mode: "staging", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateGinMode(tt.mode)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateGinMode() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResolveCSRFSecret(t *testing.T) {
	got, err := resolveCSRFSecret(gin.ReleaseMode, "  "+strongSecret+"  ")
	if err != nil || got != strongSecret {
		t.Fatalf("resolveCSRFSecret() = %q, %v; want trimmed secret", got, err)
	}

	first, err := resolveCSRFSecret(gin.DebugMode, "change-me-in-env")
	if err != nil {
		t.Fatalf("resolveCSRFSecret() error = %v", err)
	}
	second, _ := resolveCSRFSecret(gin.DebugMode, "")
	if len(first) != 64 || first == second {
		t.Fatalf("expected distinct random 64-char secrets, got %q and %q", first, second)
	}
}

func TestNew_ReturnsError_WhenDatabaseSetupFails(t *testing.T) {
	cfg := testAppConfig(gin.TestMode, "")
	cfg.Database = config.DatabaseConfig{Driver: "unsupported"}

	app, err := New(cfg)
	if err == nil {
		t.Fatalf("New() error = nil, want error")
	}
	if app != nil {
		t.Fatalf("New() app = %#v, want nil", app)
	}
	if !strings.Contains(err.Error(), "setup database") {
		t.Fatalf("New() error = %q, want contains %q", err.Error(), "setup database")
	}
}

func TestNew_ReturnsError_WhenAPIBaseURLMissing(t *testing.T) {
	cfg := testAppConfig(gin.TestMode, "")
	cfg.API.BaseURL = ""

	app, err := New(cfg)
	if err == nil {
		cleanupTestApp(t, app)
		t.Fatal("New() error = nil, want error")
	}
	if !strings.Contains(err.Error(), "setup api client") {
		t.Fatalf("New() error = %q, want contains %q", err.Error(), "setup api client")
	}
}

func TestNew_ReturnsError_WhenRedisUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	addr := mr.Addr()
	mr.Close()

	cfg := testAppConfig(gin.TestMode, "")
	cfg.Cache = config.CacheConfig{Enabled: true, RedisAddr: addr, TTL: "1m"}

	app, err := New(cfg)
	if err == nil {
		cleanupTestApp(t, app)
		t.Fatal("New() error = nil, want error")
	}
	if !strings.Contains(err.Error(), "setup redis") {
		t.Fatalf("New() error = %q, want contains %q", err.Error(), "setup redis")
	}
}

func TestNew_CSRFSecretValidation(t *testing.T) {
	tests := []struct {
		name            string
		mode            string
		csrfSecret      string
		wantErr         bool
		wantErrContains string
	}{
		{
			name:            "release mode rejects empty csrf secret",
			mode:            gin.ReleaseMode,
			csrfSecret:      "",
			wantErr:         true,
			wantErrContains: "csrf_secret must be a non-placeholder value in release mode",
		},
		{
			name:            "release mode rejects placeholder csrf secret",
			mode:            gin.ReleaseMode,
			csrfSecret:      "change-me-in-env",
			wantErr:         true,
			wantErrContains: "csrf_secret must be a non-placeholder value in release mode",
		},
		{
			name:       "test mode allows empty csrf secret",
			mode:       gin.TestMode,
			csrfSecret: "",
			wantErr:    false,
		},
		{
			name:            "release mode rejects short csrf secret",
			mode:            gin.ReleaseMode,
			csrfSecret:      "Abc123!",
			wantErr:         true,
			wantErrContains: "csrf_secret must be at least 32 characters in release mode",
		},
		{
			name:            "release mode rejects low complexity csrf secret",
			mode:            gin.ReleaseMode,
			csrfSecret:      "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			wantErr:         true,
			wantErrContains: "csrf_secret must include at least 3 character classes",
		},
		{
			name:       "release mode accepts strong csrf secret",
			mode:       gin.ReleaseMode,
			csrfSecret: strongSecret,
			wantErr:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, err := New(testAppConfig(tt.mode, tt.csrfSecret))
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}

			if tt.wantErr {
				if !strings.Contains(err.Error(), tt.wantErrContains) {
					t.Fatalf("New() error = %q, want contains %q", err.Error(), tt.wantErrContains)
				}
				if app != nil {
					t.Fatalf("New() app = %#v, want nil", app)
				}
				return
			}

			if app == nil {
				t.Fatal("New() app = nil, want non-nil")
			}
			cleanupTestApp(t, app)
		})
	}
}

func TestNew_WiresRoutes(t *testing.T) {
	app, err := New(testAppConfig(gin.TestMode, strongSecret))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer cleanupTestApp(t, app)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{name: "health", path: "/health", wantStatus: http.StatusOK, wantBody: `"cache":"disabled"`},
		{name: "metrics", path: "/metrics", wantStatus: http.StatusOK, wantBody: "go_goroutines"},
		{name: "sign-in page is public", path: "/login", wantStatus: http.StatusOK, wantBody: `name="password"`},
		{name: "dataset page needs a session", path: "/loans", wantStatus: http.StatusUnauthorized, wantBody: "/login?next=%2Floans"},
		{name: "dataset API needs a session", path: "/api/v1/tables/loans", wantStatus: http.StatusUnauthorized, wantBody: "authentication required"},
		{name: "unknown page", path: "/no-such-page", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			app.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("GET %s status = %d, want %d (body %q)", tt.path, w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantBody != "" && !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Fatalf("GET %s body = %q, want contains %q", tt.path, w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestNew_RateLimitEnabled(t *testing.T) {
	cfg := testAppConfig(gin.TestMode, strongSecret)
	cfg.Server.RateLimit = config.RateLimitConfig{Enabled: true, Requests: 1, Window: "1m"}

	app, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer cleanupTestApp(t, app)

	codes := make([]int, 0, 2)
	for range 2 {
		w := httptest.NewRecorder()
		app.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/login", nil))
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("statuses = %v, want [200 429]", codes)
	}
}

func TestNew_SecureHeadersEnabled(t *testing.T) {
	cfg := testAppConfig(gin.TestMode, strongSecret)
	cfg.Server.SecureHeaders = config.SecureHeadersConfig{Enabled: true, ContentSecurityPolicy: "default-src 'self'"}

	app, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer cleanupTestApp(t, app)

	w := httptest.NewRecorder()
	app.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/login", nil))
	if got := w.Header().Get("Content-Security-Policy"); got != "default-src 'self'" {
		t.Fatalf("Content-Security-Policy = %q", got)
	}
}

func TestNew_WithRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testAppConfig(gin.TestMode, strongSecret)
	cfg.Cache = config.CacheConfig{Enabled: true, RedisAddr: mr.Addr(), TTL: "1m"}

	app, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer cleanupTestApp(t, app)

	if app.redis == nil {
		t.Fatal("expected a redis client when the cache is enabled")
	}
	w := httptest.NewRecorder()
	app.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if !strings.Contains(w.Body.String(), `"cache":"ok"`) {
		t.Fatalf("health body = %q, want cache ok", w.Body.String())
	}
}

func TestRun_ReturnsError_WhenListenFails(t *testing.T) {
	originalNewHTTPServer := newHTTPServer
	originalNotifyContext := notifyContext
	defer func() {
		newHTTPServer = originalNewHTTPServer
		notifyContext = originalNotifyContext
	}()

	listenErr := errors.New("listen failed")
	server := &fakeHTTPServer{listenErr: listenErr}
	newHTTPServer = func(string, http.Handler, time.Duration) httpServer {
		return server
	}
	notifyContext = func(context.Context, ...os.Signal) (context.Context, context.CancelFunc) {
		return context.WithCancel(context.Background())
	}

	a := &App{
		engine: gin.New(),
		logger: logger.Default(),
		cfg:    &config.Config{Server: config.ServerConfig{Host: "127.0.0.1", Port: 8080}},
	}

	err := a.Run()
	if err == nil {
		t.Fatalf("Run() error = nil, want error")
	}
	if !strings.Contains(err.Error(), "server error") {
		t.Fatalf("Run() error = %q, want contains %q", err.Error(), "server error")
	}
	if !errors.Is(err, listenErr) {
		t.Fatalf("Run() error = %v, want wraps %v", err, listenErr)
	}
}

func TestRun_UsesConfiguredWriteTimeout(t *testing.T) {
	originalNewHTTPServer := newHTTPServer
	originalNotifyContext := notifyContext
	defer func() {
		newHTTPServer = originalNewHTTPServer
		notifyContext = originalNotifyContext
	}()

	var gotTimeout time.Duration
	newHTTPServer = func(_ string, _ http.Handler, writeTimeout time.Duration) httpServer {
		gotTimeout = writeTimeout
		return &fakeHTTPServer{listenErr: errors.New("stop")}
	}
	notifyContext = func(context.Context, ...os.Signal) (context.Context, context.CancelFunc) {
		return context.WithCancel(context.Background())
	}

	a := &App{
		engine: gin.New(),
		cfg:    &config.Config{Server: config.ServerConfig{Host: "127.0.0.1", Port: 8080, Timeout: "2m"}},
	}
	_ = a.Run()

	if gotTimeout != 2*time.Minute {
		t.Fatalf("write timeout = %v, want 2m", gotTimeout)
	}
}

func TestRun_ShutdownSignal_ClosesConnections(t *testing.T) {
	originalNewHTTPServer := newHTTPServer
	originalNotifyContext := notifyContext
	defer func() {
		newHTTPServer = originalNewHTTPServer
		notifyContext = originalNotifyContext
	}()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("gorm.Open() error = %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB() error = %v", err)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	server := &fakeHTTPServer{listenStarted: make(chan struct{}), stopCh: make(chan struct{})}
	newHTTPServer = func(string, http.Handler, time.Duration) httpServer {
		return server
	}

	ctx, cancel := context.WithCancel(context.Background())
	notifyContext = func(context.Context, ...os.Signal) (context.Context, context.CancelFunc) {
		return ctx, cancel
	}

	a := &App{
		engine: gin.New(),
		db:     db,
		redis:  rdb,
		logger: logger.Default(),
		cfg:    &config.Config{Server: config.ServerConfig{Host: "127.0.0.1", Port: 8080}},
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Run()
	}()

	select {
	case <-server.listenStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not start listening in time")
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return in time after shutdown signal")
	}

	if !server.wasShutdownCalled() {
		t.Fatal("expected server Shutdown() to be called")
	}
	if pingErr := sqlDB.Ping(); pingErr == nil {
		t.Fatal("expected database connection to be closed, but Ping() succeeded")
	}
	if pingErr := rdb.Ping(context.Background()).Err(); !errors.Is(pingErr, redis.ErrClosed) {
		t.Fatalf("redis ping after Run() = %v, want %v", pingErr, redis.ErrClosed)
	}
}

const e2eLoans = `{"count":2,"results":[` +
	`{"id":1,"borrower_name":"Ada","amount":"5000.00","status":"active"},` +
	`{"id":2,"borrower_name":"Obi, Jr.","amount":"750.50","status":"closed"}]}`

func newFakeLendingAPI(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var (
		mu    sync.Mutex
		paths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Invalid token."}`))
			return
		}
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/loans/", "/api/loans/search/", "/api/loans/download/":
			_, _ = w.Write([]byte(e2eLoans))
		case "/api/loans/1/":
			_, _ = w.Write([]byte(`{"id":1,"borrower_name":"Ada","amount":"5000.00","status":"active"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Not found."}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &paths
}

func serveWithToken(a *App, path string, htmx bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: "tok"})
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func TestApp_DatasetFlow(t *testing.T) {
	api, paths := newFakeLendingAPI(t)
	cfg := testAppConfig(gin.TestMode, strongSecret)
	cfg.API.BaseURL = api.URL + "/api"

	app, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer cleanupTestApp(t, app)

	t.Run("full page renders the table", func(t *testing.T) {
		w := serveWithToken(app, "/loans", false)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body %q", w.Code, w.Body.String())
		}
		body := w.Body.String()
		for _, want := range []string{"Obi, Jr.", "5,000.00", "Page 1 of 1 (2 total)", `href="/loans/1"`, `id="filters"`, `href="/loans/export"`} {
			if !strings.Contains(body, want) {
				t.Errorf("page missing %q", want)
			}
		}
		// Page size lives only in the swapped fragment so the filter form
		// always submits the current selection.
		if strings.Count(body, `name="page_size"`) != 1 || !strings.Contains(body, `hx-include="#table [name='page_size']"`) {
			t.Error("filter form must take page_size from the table fragment")
		}
	})

	t.Run("htmx search returns the partial and pushes the url", func(t *testing.T) {
		w := serveWithToken(app, "/loans?search=ada&page_size=25", true)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body %q", w.Code, w.Body.String())
		}
		if got := w.Header().Get("HX-Push-Url"); got != "/loans?page_size=25&q=ada" {
			t.Errorf("HX-Push-Url = %q", got)
		}
		body := w.Body.String()
		if strings.Contains(body, "<html") {
			t.Error("htmx response must be the table partial only")
		}
		// The swapped fragment carries the actions so they follow the filter.
		for _, want := range []string{`href="/loans/export?q=ada"`, `hx-get="/loans?page_size=25&amp;q=ada"`, `<option value="25" selected>`} {
			if !strings.Contains(body, want) {
				t.Errorf("partial missing %q", want)
			}
		}
	})

	t.Run("export streams csv and is recorded", func(t *testing.T) {
		w := serveWithToken(app, "/loans/export", false)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body %q", w.Code, w.Body.String())
		}
		if got := w.Header().Get("Content-Disposition"); got != "attachment; filename=LOANS.csv" {
			t.Errorf("Content-Disposition = %q", got)
		}
		if !strings.Contains(w.Body.String(), `2,"Obi, Jr.",750.50`) {
			t.Errorf("csv body = %q", w.Body.String())
		}

		history := serveWithToken(app, "/exports", false)
		if history.Code != http.StatusOK || !strings.Contains(history.Body.String(), "LOANS.csv") {
			t.Errorf("export history status = %d, body %q", history.Code, history.Body.String())
		}
		if !strings.Contains(history.Body.String(), "Page 1 of 1") {
			t.Errorf("export history missing pagination, body %q", history.Body.String())
		}
	})

	t.Run("detail page", func(t *testing.T) {
		w := serveWithToken(app, "/loans/1", false)
		if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Ada") {
			t.Fatalf("status = %d, body %q", w.Code, w.Body.String())
		}
	})

	t.Run("upstream calls are measured", func(t *testing.T) {
		w := httptest.NewRecorder()
		app.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		if !strings.Contains(w.Body.String(), "lendpanel_upstream_requests_total") {
			t.Error("expected upstream request metrics")
		}
	})

	want := []string{"/api/loans/", "/api/loans/search/", "/api/loans/download/", "/api/loans/1/"}
	if len(*paths) != len(want) {
		t.Fatalf("upstream paths = %v, want %v", *paths, want)
	}
	for i := range want {
		if (*paths)[i] != want[i] {
			t.Errorf("upstream call %d = %q, want %q", i, (*paths)[i], want[i])
		}
	}
}
