// Package backend is the HTTP client for the account backend's REST
// endpoints (dj-rest-auth layout by default).
//
// A Client is safe for concurrent use. Cookie handling depends on how it
// was built: the gate passes the session cookie explicitly, the shell
// gives the client a cookie jar, and the web app derives a per-request
// copy with ForRequest that relays cookies between browser and backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/vango-dev/authfront/pkg/auth"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultTracerName = "authfront/backend"
	defaultTimeout    = 10 * time.Second

	// maxBodyBytes bounds how much of a backend response is read.
	maxBodyBytes = 1 << 20
)

// Endpoints are the backend paths, relative to the base URL.
type Endpoints struct {
	CurrentUser          string
	Login                string
	Logout               string
	Registration         string
	ResendEmail          string
	VerifyEmail          string
	PasswordReset        string
	PasswordResetConfirm string
	Protected            string
}

// DefaultEndpoints returns the dj-rest-auth paths.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		CurrentUser:          "/api/auth/user/",
		Login:                "/api/auth/login/",
		Logout:               "/api/auth/logout/",
		Registration:         "/api/auth/registration/",
		ResendEmail:          "/api/auth/registration/resend-email/",
		VerifyEmail:          "/api/auth/registration/verify-email/",
		PasswordReset:        "/api/auth/password/reset/",
		PasswordResetConfirm: "/api/auth/password/reset/confirm/",
		Protected:            "/api/users/protected/",
	}
}

// Observer is called once per backend call. status is 0 when no response
// was received.
type Observer func(endpoint string, status int, err error, d time.Duration)

// Client calls the backend.
type Client struct {
	base      *url.URL
	http      *http.Client
	endpoints Endpoints
	logger    *slog.Logger
	tracer    trace.Tracer
	observer  Observer

	jar     http.CookieJar
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client. It is copied, not shared.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithEndpoints overrides the endpoint paths.
func WithEndpoints(e Endpoints) Option {
	return func(c *Client) {
		c.endpoints = e
	}
}

// WithCookieJar keeps backend cookies between calls.
func WithCookieJar(jar http.CookieJar) Option {
	return func(c *Client) {
		c.jar = jar
	}
}

// WithTimeout bounds every call made by the client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTracer sets the tracer used for client spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithObserver registers a per-call observer, typically metrics.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("backend: parse base URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("backend: base URL %q must be an absolute http(s) URL", baseURL)
	}

	c := &Client{
		base:      u,
		http:      http.DefaultClient,
		endpoints: DefaultEndpoints(),
		logger:    slog.Default(),
		tracer:    otel.Tracer(defaultTracerName),
		timeout:   defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	hc := *c.http
	if c.jar != nil {
		hc.Jar = c.jar
	}
	if c.timeout > 0 {
		hc.Timeout = c.timeout
	}
	c.http = &hc
	return c, nil
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// ForRequest returns a copy of c that forwards the cookies of r to the
// backend and relays any cookies the backend sets onto w.
func (c *Client) ForRequest(w http.ResponseWriter, r *http.Request) *Client {
	cp := *c
	hc := *c.http
	hc.Jar = NewRelayJar(w, r)
	cp.http = &hc
	cp.jar = hc.Jar
	return &cp
}

func (c *Client) call(ctx context.Context, endpoint, method, path string, in any, cookies ...*http.Cookie) (int, []byte, error) {
	ctx, span := c.tracer.Start(ctx, "backend "+endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("backend.endpoint", endpoint),
		),
	)
	defer span.End()

	start := time.Now()
	status, body, err := c.roundTrip(ctx, endpoint, method, path, in, cookies)
	elapsed := time.Since(start)

	if status != 0 {
		span.SetAttributes(attribute.Int("http.status_code", status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Debug("backend call failed", "endpoint", endpoint, "status", status, "error", err, "duration", elapsed)
	}
	if c.observer != nil {
		c.observer(endpoint, status, err, elapsed)
	}
	return status, body, err
}

func (c *Client) roundTrip(ctx context.Context, endpoint, method, path string, in any, cookies []*http.Cookie) (int, []byte, error) {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return 0, nil, fmt.Errorf("backend: encode %s request: %w", endpoint, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), reader)
	if err != nil {
		return 0, nil, fmt.Errorf("backend: build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, &auth.NetworkError{Op: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, &auth.NetworkError{Op: endpoint, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, body, &APIError{Endpoint: endpoint, Status: resp.StatusCode, Body: body}
	}
	return resp.StatusCode, body, nil
}
