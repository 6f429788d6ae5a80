package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultAPIURL is the backend base URL.
	DefaultAPIURL = "http://localhost:8000"

	// DefaultPort is the default HTTP port.
	DefaultPort = "3000"

	DefaultSessionCookieName = "my-app-auth"
	DefaultRefreshCookieName = "my-app-refresh-token"
	DefaultValidateTimeout   = 3 * time.Second
)

// Modes accepted by APP_MODE.
const (
	ModeDebug   = "debug"
	ModeRelease = "release"
	ModeTest    = "test"
)

// Config holds every runtime setting.
type Config struct {
	// APIURL is the backend base URL.
	APIURL string
	Port   string
	Mode   string

	// Auth flow switches.
	EmailVerificationRequired bool
	LoginOnRegistration       bool

	SessionCookieName string
	RefreshCookieName string
	ValidateTimeout   time.Duration

	// ProtectedRoutes and AuthRoutes are path prefixes for the gate.
	ProtectedRoutes []string
	AuthRoutes      []string

	// TrustedProxies lists CIDRs or IPs whose forwarded headers are honored.
	TrustedProxies []string
	CookieDomain   string

	// RedisURL selects the Redis flash store; empty means in-memory.
	RedisURL string

	MetricsEnabled bool
	LogLevel       string
	LogFormat      string
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		APIURL:              DefaultAPIURL,
		Port:                DefaultPort,
		Mode:                ModeDebug,
		LoginOnRegistration: true,
		SessionCookieName:   DefaultSessionCookieName,
		RefreshCookieName:   DefaultRefreshCookieName,
		ValidateTimeout:     DefaultValidateTimeout,
		ProtectedRoutes:     []string{"/protected"},
		AuthRoutes:          []string{"/login", "/signup", "/forgot-password", "/reset-password"},
		MetricsEnabled:      true,
		LogLevel:            "info",
		LogFormat:           "text",
	}
}

// Load reads .env.local and .env (when present) and then the environment.
func Load() (*Config, error) {
	loadEnvFiles(".env.local", ".env")
	return FromEnv()
}

// FromEnv builds and validates a Config from the environment only.
func FromEnv() (*Config, error) {
	def := Default()
	cfg := &Config{
		APIURL: strings.TrimRight(getEnv("API_URL", def.APIURL), "/"),
		Port:   getEnv("PORT", def.Port),
		Mode:   strings.ToLower(getEnv("APP_MODE", def.Mode)),

		EmailVerificationRequired: getEnvBool("EMAIL_VERIFICATION_REQUIRED", def.EmailVerificationRequired),
		LoginOnRegistration:       getEnvBool("LOGIN_ON_REGISTRATION", def.LoginOnRegistration),

		SessionCookieName: getEnv("SESSION_COOKIE_NAME", def.SessionCookieName),
		RefreshCookieName: getEnv("REFRESH_COOKIE_NAME", def.RefreshCookieName),
		ValidateTimeout:   getEnvDuration("AUTH_VALIDATE_TIMEOUT", def.ValidateTimeout),

		ProtectedRoutes: getEnvList("PROTECTED_ROUTES", def.ProtectedRoutes),
		AuthRoutes:      getEnvList("AUTH_ROUTES", def.AuthRoutes),

		TrustedProxies: getEnvList("TRUSTED_PROXIES", nil),
		CookieDomain:   getEnv("COOKIE_DOMAIN", ""),
		RedisURL:       getEnv("REDIS_URL", ""),

		MetricsEnabled: getEnvBool("METRICS_ENABLED", def.MetricsEnabled),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", def.LogLevel)),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", def.LogFormat)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvFiles applies each file that exists. Earlier files win because
// godotenv never overrides a variable that is already set.
func loadEnvFiles(names ...string) {
	for _, name := range names {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(filepath.Clean(name)); err != nil {
			slog.Warn("ignoring unreadable env file", "file", name, "error", err)
		}
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil {
		return fmt.Errorf("API_URL is invalid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("API_URL must be an http or https URL, got %q", c.APIURL)
	}
	if u.Host == "" {
		return fmt.Errorf("API_URL has no host: %q", c.APIURL)
	}

	if c.ValidateTimeout <= 0 {
		return fmt.Errorf("AUTH_VALIDATE_TIMEOUT must be positive, got %s", c.ValidateTimeout)
	}

	switch c.Mode {
	case ModeDebug, ModeRelease, ModeTest:
	default:
		return fmt.Errorf("APP_MODE must be one of debug, release, test; got %q", c.Mode)
	}

	if c.SessionCookieName == "" {
		return fmt.Errorf("SESSION_COOKIE_NAME must not be empty")
	}
	if c.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be numeric, got %q", c.Port)
	}

	if c.RedisURL != "" {
		if ru, err := url.Parse(c.RedisURL); err != nil || (ru.Scheme != "redis" && ru.Scheme != "rediss") {
			return fmt.Errorf("REDIS_URL must be a redis:// or rediss:// URL, got %q", c.RedisURL)
		}
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// IsRelease reports whether the app runs in release mode.
func (c *Config) IsRelease() bool {
	return c.Mode == ModeRelease
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// getEnv returns the variable or defaultValue when unset or empty.
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvDuration accepts Go durations ("3s") or a bare number of
// milliseconds. Unparsable values yield -1 so Validate reports them.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if ms, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return -1
	}
	return value
}

// getEnvList splits a comma-separated variable, dropping empty items.
func getEnvList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
