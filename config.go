package authfront

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/authfront/pkg/session"
)

// =============================================================================
// Options
// =============================================================================

// Option customizes an App beyond what config.Config carries.
type Option func(*options)

type options struct {
	logger         *slog.Logger
	registry       *prometheus.Registry
	tracerProvider trace.TracerProvider
	httpClient     *http.Client
	flashStore     session.Store
}

// WithLogger sets the application logger.
// If unset, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRegistry sets the Prometheus registry metrics are registered with
// and /metrics serves. Default: a fresh registry with Go and process
// collectors.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// WithTracerProvider sets the tracer provider for request and backend
// spans. Default: the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithHTTPClient sets the HTTP client used to reach the backend.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// WithFlashStore sets the store for flash toasts. When unset the store
// is chosen from REDIS_URL, falling back to memory. The App closes it.
func WithFlashStore(store session.Store) Option {
	return func(o *options) {
		o.flashStore = store
	}
}
