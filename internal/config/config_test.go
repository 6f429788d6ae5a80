package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

var configVars = []string{
	"API_URL", "PORT", "APP_MODE", "EMAIL_VERIFICATION_REQUIRED", "LOGIN_ON_REGISTRATION",
	"SESSION_COOKIE_NAME", "REFRESH_COOKIE_NAME", "AUTH_VALIDATE_TIMEOUT", "PROTECTED_ROUTES",
	"AUTH_ROUTES", "TRUSTED_PROXIES", "COOKIE_DOMAIN", "REDIS_URL", "METRICS_ENABLED",
	"LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv blanks every variable so the host environment can't leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configVars {
		t.Setenv(key, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("FromEnv() = %+v\nwant %+v", cfg, Default())
	}
	if cfg.Addr() != ":3000" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_URL", "https://api.example.com/")
	t.Setenv("PORT", "8080")
	t.Setenv("APP_MODE", "Release")
	t.Setenv("EMAIL_VERIFICATION_REQUIRED", "true")
	t.Setenv("LOGIN_ON_REGISTRATION", "false")
	t.Setenv("AUTH_VALIDATE_TIMEOUT", "1500")
	t.Setenv("PROTECTED_ROUTES", "/protected, /account ,")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8")
	t.Setenv("REDIS_URL", "redis://localhost:6379/1")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.APIURL != "https://api.example.com" {
		t.Errorf("APIURL = %q, trailing slash should be trimmed", cfg.APIURL)
	}
	if !cfg.IsRelease() {
		t.Errorf("Mode = %q, want release", cfg.Mode)
	}
	if !cfg.EmailVerificationRequired || cfg.LoginOnRegistration {
		t.Errorf("flags = %v/%v", cfg.EmailVerificationRequired, cfg.LoginOnRegistration)
	}
	if cfg.ValidateTimeout != 1500*time.Millisecond {
		t.Errorf("ValidateTimeout = %v", cfg.ValidateTimeout)
	}
	if want := []string{"/protected", "/account"}; !reflect.DeepEqual(cfg.ProtectedRoutes, want) {
		t.Errorf("ProtectedRoutes = %v, want %v", cfg.ProtectedRoutes, want)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel = %v", cfg.SlogLevel())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad scheme", func(c *Config) { c.APIURL = "ftp://host" }, "API_URL"},
		{"no host", func(c *Config) { c.APIURL = "http://" }, "API_URL"},
		{"zero timeout", func(c *Config) { c.ValidateTimeout = 0 }, "AUTH_VALIDATE_TIMEOUT"},
		{"negative timeout", func(c *Config) { c.ValidateTimeout = -time.Second }, "AUTH_VALIDATE_TIMEOUT"},
		{"bad mode", func(c *Config) { c.Mode = "prod" }, "APP_MODE"},
		{"empty cookie", func(c *Config) { c.SessionCookieName = "" }, "SESSION_COOKIE_NAME"},
		{"bad port", func(c *Config) { c.Port = "http" }, "PORT"},
		{"bad redis", func(c *Config) { c.RedisURL = "localhost:6379" }, "REDIS_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestFromEnvRejectsBadDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUTH_VALIDATE_TIMEOUT", "soon")

	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error for unparsable timeout")
	}
}

func TestLoadEnvFiles(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env.local"), []byte("PORT=4000\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("PORT=5000\nCOOKIE_DOMAIN=example.com\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(wd)
		os.Unsetenv("PORT")
		os.Unsetenv("COOKIE_DOMAIN")
	})
	// godotenv only fills unset variables.
	os.Unsetenv("PORT")
	os.Unsetenv("COOKIE_DOMAIN")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "4000" {
		t.Errorf("Port = %q, .env.local should win", cfg.Port)
	}
	if cfg.CookieDomain != "example.com" {
		t.Errorf("CookieDomain = %q", cfg.CookieDomain)
	}
}
