package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	API      APIConfig      `koanf:"api"`
	Auth     AuthConfig     `koanf:"auth"`
	Cache    CacheConfig    `koanf:"cache"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host          string              `koanf:"host"`
	Port          int                 `koanf:"port"`
	Mode          string              `koanf:"mode"`
	CSRFSecret    string              `koanf:"csrf_secret"`
	Timeout       string              `koanf:"timeout"`
	CORS          CORSConfig          `koanf:"cors"`
	RateLimit     RateLimitConfig     `koanf:"rate_limit"`
	SecureHeaders SecureHeadersConfig `koanf:"secure_headers"`
}

// CORSConfig holds CORS middleware settings.
type CORSConfig struct {
	AllowOrigins     []string `koanf:"allow_origins"`
	AllowMethods     []string `koanf:"allow_methods"`
	AllowHeaders     []string `koanf:"allow_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           string   `koanf:"max_age"`
}

// RateLimitConfig limits requests per client IP.
type RateLimitConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Requests int    `koanf:"requests"`
	Window   string `koanf:"window"`
}

// SecureHeadersConfig controls the security response headers.
type SecureHeadersConfig struct {
	Enabled               bool   `koanf:"enabled"`
	ContentSecurityPolicy string `koanf:"content_security_policy"`
	HSTSSeconds           int64  `koanf:"hsts_seconds"`
}

// APIConfig points at the lending platform REST API.
type APIConfig struct {
	BaseURL   string `koanf:"base_url"`
	Timeout   string `koanf:"timeout"`
	LoginPath string `koanf:"login_path"`
	UserAgent string `koanf:"user_agent"`
}

// AuthConfig controls the session cookie that carries the API bearer token.
type AuthConfig struct {
	CookieName   string `koanf:"cookie_name"`
	CookieMaxAge string `koanf:"cookie_max_age"`
	CookieSecure bool   `koanf:"cookie_secure"`
}

// CacheConfig holds the redis download-set cache settings.
type CacheConfig struct {
	Enabled       bool   `koanf:"enabled"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	TTL           string `koanf:"ttl"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver   string         `koanf:"driver"`
	SQLite   SQLiteConfig   `koanf:"sqlite"`
	Postgres PostgresConfig `koanf:"postgres"`
	Pool     PoolConfig     `koanf:"pool"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	DBName   string `koanf:"dbname"`
	SSLMode  string `koanf:"sslmode"`
}

// PoolConfig holds database connection pool settings.
type PoolConfig struct {
	MaxIdleConns    int    `koanf:"max_idle_conns"`
	MaxOpenConns    int    `koanf:"max_open_conns"`
	ConnMaxLifetime string `koanf:"conn_max_lifetime"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level           string `koanf:"level"`
	Format          string `koanf:"format"`
	Color           *bool  `koanf:"color"`
	FilePath        string `koanf:"file_path"`
	MaxSizeMB       int    `koanf:"max_size_mb"`
	RetentionDays   int    `koanf:"retention_days"`
	MaxBackups      int    `koanf:"max_backups"`
	CompressRotated *bool  `koanf:"compress_rotated"`
}

// Load reads configuration from a YAML file and overlays environment variables.
// Environment variables use the prefix "APP__" and double-underscore as the
// hierarchy separator, e.g. APP__API__BASE_URL overrides api.base_url.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}

	if err := k.Load(env.Provider("APP__", ".", func(s string) string {
		key := strings.TrimPrefix(s, "APP__")
		key = strings.ToLower(key)
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate normalizes values and rejects unsupported ones.
func (c *Config) Validate() error {
	for _, validate := range []func() error{
		c.validateServer,
		c.validateAPI,
		c.validateAuth,
		c.validateCache,
		c.validateDatabase,
		c.validateLog,
	} {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	mode := strings.TrimSpace(c.Server.Mode)
	switch mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		c.Server.Mode = mode
	default:
		return fmt.Errorf("invalid server.mode %q: must be one of %q, %q, %q", c.Server.Mode, gin.DebugMode, gin.ReleaseMode, gin.TestMode)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", c.Server.Port)
	}

	host := strings.TrimSpace(c.Server.Host)
	if host == "" {
		return fmt.Errorf("server.host is required")
	}
	c.Server.Host = host

	if err := optionalDuration("server.timeout", &c.Server.Timeout); err != nil {
		return err
	}
	if err := optionalDuration("server.cors.max_age", &c.Server.CORS.MaxAge); err != nil {
		return err
	}

	if secret := strings.TrimSpace(c.Server.CSRFSecret); c.Server.Mode == gin.ReleaseMode && secret != "" {
		if len(secret) < 32 {
			return fmt.Errorf("invalid server.csrf_secret: must be at least 32 characters in release mode")
		}
		if CountSecretClasses(secret) < 3 {
			return fmt.Errorf("server.csrf_secret must include at least 3 character classes (lowercase, uppercase, digit, symbol) in release mode")
		}
	}

	if c.Server.RateLimit.Enabled {
		if c.Server.RateLimit.Requests <= 0 {
			return fmt.Errorf("invalid server.rate_limit.requests %d: must be positive when rate limiting is enabled", c.Server.RateLimit.Requests)
		}
		if err := requiredDuration("server.rate_limit.window", &c.Server.RateLimit.Window); err != nil {
			return err
		}
	}

	if c.Server.SecureHeaders.HSTSSeconds < 0 {
		return fmt.Errorf("invalid server.secure_headers.hsts_seconds %d: must not be negative", c.Server.SecureHeaders.HSTSSeconds)
	}
	c.Server.SecureHeaders.ContentSecurityPolicy = strings.TrimSpace(c.Server.SecureHeaders.ContentSecurityPolicy)

	return nil
}

func (c *Config) validateAPI() error {
	raw := strings.TrimSpace(c.API.BaseURL)
	if raw == "" {
		return fmt.Errorf("api.base_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid api.base_url %q: must be an absolute http(s) URL", c.API.BaseURL)
	}
	if c.Server.Mode == gin.ReleaseMode && u.Scheme != "https" {
		return fmt.Errorf("invalid api.base_url %q for server.mode %q: must use https", c.API.BaseURL, gin.ReleaseMode)
	}
	c.API.BaseURL = strings.TrimRight(raw, "/")

	if err := optionalDuration("api.timeout", &c.API.Timeout); err != nil {
		return err
	}

	loginPath := strings.TrimSpace(c.API.LoginPath)
	if loginPath != "" && !strings.HasPrefix(loginPath, "/") {
		return fmt.Errorf("invalid api.login_path %q: must start with '/'", c.API.LoginPath)
	}
	c.API.LoginPath = loginPath
	c.API.UserAgent = strings.TrimSpace(c.API.UserAgent)
	return nil
}

func (c *Config) validateAuth() error {
	name := strings.TrimSpace(c.Auth.CookieName)
	if name == "" {
		name = "token"
	}
	if strings.ContainsAny(name, " ;,=\t") {
		return fmt.Errorf("invalid auth.cookie_name %q: must be a valid cookie token", c.Auth.CookieName)
	}
	c.Auth.CookieName = name

	return optionalDuration("auth.cookie_max_age", &c.Auth.CookieMaxAge)
}

func (c *Config) validateCache() error {
	if !c.Cache.Enabled {
		return nil
	}
	addr := strings.TrimSpace(c.Cache.RedisAddr)
	if addr == "" {
		return fmt.Errorf("cache.redis_addr is required when cache is enabled")
	}
	c.Cache.RedisAddr = addr
	if c.Cache.RedisDB < 0 {
		return fmt.Errorf("invalid cache.redis_db %d: must not be negative", c.Cache.RedisDB)
	}
	return requiredDuration("cache.ttl", &c.Cache.TTL)
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "sqlite":
		sqlitePath := strings.TrimSpace(c.Database.SQLite.Path)
		if sqlitePath == "" {
			return fmt.Errorf("database.sqlite.path is required when driver is sqlite")
		}
		c.Database.SQLite.Path = sqlitePath
	case "postgres":
		if err := c.validatePostgres(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid database.driver %q: must be one of %q, %q", c.Database.Driver, "sqlite", "postgres")
	}

	return optionalDuration("database.pool.conn_max_lifetime", &c.Database.Pool.ConnMaxLifetime)
}

func (c *Config) validatePostgres() error {
	pg := &c.Database.Postgres

	host := strings.TrimSpace(pg.Host)
	if host == "" {
		return fmt.Errorf("database.postgres.host is required when driver is postgres")
	}
	if pg.Port < 1 || pg.Port > 65535 {
		return fmt.Errorf("invalid database.postgres.port %d: must be between 1 and 65535", pg.Port)
	}
	user := strings.TrimSpace(pg.User)
	if user == "" {
		return fmt.Errorf("database.postgres.user is required when driver is postgres")
	}
	dbName := strings.TrimSpace(pg.DBName)
	if dbName == "" {
		return fmt.Errorf("database.postgres.dbname is required when driver is postgres")
	}

	sslMode := strings.TrimSpace(pg.SSLMode)
	switch sslMode {
	case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
	default:
		return fmt.Errorf("invalid database.postgres.sslmode %q: must be one of %q, %q, %q, %q, %q, %q", pg.SSLMode, "disable", "allow", "prefer", "require", "verify-ca", "verify-full")
	}
	if c.Server.Mode == gin.ReleaseMode {
		switch sslMode {
		case "require", "verify-ca", "verify-full":
		default:
			return fmt.Errorf("invalid database.postgres.sslmode %q for server.mode %q: must be one of %q, %q, %q", pg.SSLMode, gin.ReleaseMode, "require", "verify-ca", "verify-full")
		}
	}

	pg.Host = host
	pg.User = user
	pg.DBName = dbName
	pg.SSLMode = sslMode
	return nil
}

func (c *Config) validateLog() error {
	level := strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch level {
	case "debug", "info", "warn", "error":
		c.Log.Level = level
	default:
		return fmt.Errorf("invalid log.level %q: must be one of %q, %q, %q, %q", c.Log.Level, "debug", "info", "warn", "error")
	}

	format := strings.ToLower(strings.TrimSpace(c.Log.Format))
	switch format {
	case "text", "json":
		c.Log.Format = format
	default:
		return fmt.Errorf("invalid log.format %q: must be one of %q, %q", c.Log.Format, "text", "json")
	}
	return nil
}

// optionalDuration trims *v and, when non-empty, requires a positive duration.
func optionalDuration(key string, v *string) error {
	*v = strings.TrimSpace(*v)
	if *v == "" {
		return nil
	}
	return requiredDuration(key, v)
}

func requiredDuration(key string, v *string) error {
	raw := strings.TrimSpace(*v)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, *v, err)
	}
	if d <= 0 {
		return fmt.Errorf("invalid %s %q: must be greater than 0", key, *v)
	}
	*v = raw
	return nil
}

// DurationOr parses v, returning fallback when v is empty or invalid.
// Values are validated by Load, so the fallback only applies to unset keys.
func DurationOr(v string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil && d > 0 {
		return d
	}
	return fallback
}

// CountSecretClasses counts how many character classes (lowercase, uppercase,
// digit, symbol) are present in the given secret string.
func CountSecretClasses(secret string) int {
	var lower, upper, digit, symbol bool
	for _, r := range secret {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}

	classes := 0
	for _, present := range []bool{lower, upper, digit, symbol} {
		if present {
			classes++
		}
	}
	return classes
}
