package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/vango-dev/authfront/pkg/auth"
	"github.com/vango-dev/authfront/pkg/auth/sessionauth"
)

// MetricsConfig configures the Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "authfront").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for durations.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "authfront",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the Prometheus collectors.
//
// Metrics collected:
//   - authfront_http_requests_total: requests by route, method and status
//   - authfront_http_request_duration_seconds: request latency by route
//   - authfront_gate_decisions_total: gate decisions by validation result and action
//   - authfront_gate_validation_duration_seconds: time spent validating cookies
//   - authfront_backend_requests_total: backend calls by endpoint and outcome
//   - authfront_backend_request_duration_seconds: backend latency by endpoint
type Metrics struct {
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	gateDecisions      *prometheus.CounterVec
	validationDuration prometheus.Histogram
	backendRequests    *prometheus.CounterVec
	backendDuration    *prometheus.HistogramVec
}

// NewMetrics registers the collectors with the configured registry.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests served",
			ConstLabels: config.ConstLabels,
		}, []string{"route", "method", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"route"}),

		gateDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "gate_decisions_total",
			Help:        "Request gate decisions by validation result and action",
			ConstLabels: config.ConstLabels,
		}, []string{"validation", "action"}),

		validationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "gate_validation_duration_seconds",
			Help:        "Time spent validating session cookies with the backend",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{.01, .05, .1, .25, .5, 1, 2, 3},
		}),

		backendRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "backend_requests_total",
			Help:        "Backend calls by endpoint and outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"endpoint", "outcome"}),

		backendDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "backend_request_duration_seconds",
			Help:        "Backend call duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"endpoint"}),
	}
}

// Handler records request count and latency. The route label is the chi
// route pattern, so path parameters do not explode cardinality.
func (m *Metrics) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := newStatusRecorder(w)
		start := time.Now()

		next.ServeHTTP(rec, r)

		route := routePattern(r)
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		m.requestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rec.Status())).Inc()
	})
}

// ObserveGate records a gate decision. Its signature matches
// sessionauth.WithDecisionHook.
func (m *Metrics) ObserveGate(_ *http.Request, d sessionauth.Decision) {
	m.gateDecisions.WithLabelValues(d.Validation.String(), d.Action.String()).Inc()
	if d.Validation != sessionauth.ValidationSkipped {
		m.validationDuration.Observe(d.Elapsed.Seconds())
	}
}

// ObserveBackend records a backend call. Its signature matches
// backend.Observer.
func (m *Metrics) ObserveBackend(endpoint string, status int, err error, d time.Duration) {
	m.backendRequests.WithLabelValues(endpoint, backendOutcome(status, err)).Inc()
	m.backendDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

func backendOutcome(status int, err error) string {
	var netErr *auth.NetworkError
	switch {
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			return "timeout"
		}
		return "network"
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case err != nil:
		return "error"
	default:
		return "ok"
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
