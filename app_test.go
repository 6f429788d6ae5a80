package authfront

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/authfront/internal/config"
	"github.com/vango-dev/authfront/pkg/session"
)

func newTestApp(t *testing.T, apiURL string, mutate ...func(*config.Config)) *App {
	t.Helper()
	cfg := config.Default()
	cfg.APIURL = apiURL
	for _, fn := range mutate {
		fn(cfg)
	}

	app, err := New(cfg,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithRegistry(prometheus.NewRegistry()),
		WithFlashStore(session.NewMemoryStore(session.WithCleanupInterval(24*time.Hour))),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func get(app http.Handler, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

func post(app http.Handler, target string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

// responseCookie returns the last Set-Cookie for name, or nil.
func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	var found *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			found = c
		}
	}
	return found
}

func sessionCookie(value string) *http.Cookie {
	return &http.Cookie{Name: "my-app-auth", Value: value}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.APIURL = "not a url"
	if _, err := New(cfg); err == nil {
		t.Fatal("New() error = nil, want error")
	}
}

func TestNewDefaultsAndAccessors(t *testing.T) {
	_, srv := newFakeBackend(t)
	app := newTestApp(t, srv.URL, func(c *config.Config) {
		c.EmailVerificationRequired = true
		c.LoginOnRegistration = false
	})

	if app.Handler() != http.Handler(app) {
		t.Error("Handler() should return the App itself")
	}
	if app.Backend().BaseURL() != srv.URL {
		t.Errorf("Backend().BaseURL() = %q", app.Backend().BaseURL())
	}
	if app.Gate().CookieName() != "my-app-auth" {
		t.Errorf("Gate().CookieName() = %q", app.Gate().CookieName())
	}
	flags := app.Flags()
	if !flags.EmailVerificationRequired || flags.LoginOnRegistration {
		t.Errorf("Flags() = %+v", flags)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	_, srv := newFakeBackend(t)
	app := newTestApp(t, srv.URL)

	rec := get(app, "/healthz")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("/healthz = %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Auth-Authenticated") != "" {
		t.Error("/healthz should bypass the gate")
	}

	get(app, "/")
	rec = get(app, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d", rec.Code)
	}
	for _, name := range []string{"authfront_http_requests_total", "authfront_gate_decisions_total"} {
		if !strings.Contains(rec.Body.String(), name) {
			t.Errorf("/metrics missing %s", name)
		}
	}
}

func TestMetricsDisabled(t *testing.T) {
	_, srv := newFakeBackend(t)
	app := newTestApp(t, srv.URL, func(c *config.Config) { c.MetricsEnabled = false })

	if rec := get(app, "/metrics"); rec.Code != http.StatusNotFound {
		t.Fatalf("/metrics status = %d, want 404", rec.Code)
	}
}

func TestNotFound(t *testing.T) {
	_, srv := newFakeBackend(t)
	app := newTestApp(t, srv.URL)

	rec := get(app, "/nope")
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "Page not found") {
		t.Fatalf("GET /nope = %d", rec.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	_, srv := newFakeBackend(t)
	app := newTestApp(t, srv.URL)

	if rec := get(app, "/"); rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID")
	}
}
