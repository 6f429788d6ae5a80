package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/vango-dev/authfront/pkg/auth"
	"github.com/vango-dev/authfront/pkg/auth/sessionauth"
)

func metricCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	if m.Counter == nil {
		t.Fatal("expected counter metric to have Counter field")
	}
	return m.GetCounter().GetValue()
}

func metricHistogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := o.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T does not implement prometheus.Metric", o)
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	if m.Histogram == nil {
		t.Fatal("expected histogram metric to have Histogram field")
	}
	return m.GetHistogram().GetSampleCount()
}

func TestMetricsHandlerUsesRoutePattern(t *testing.T) {
	m := NewMetrics(WithRegistry(prometheus.NewRegistry()))

	r := chi.NewRouter()
	r.Use(m.Handler)
	r.Get("/reset-password/{uid}/{token}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	for _, path := range []string{"/reset-password/a/1", "/reset-password/b/2", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	got := metricCounterValue(t, m.requestsTotal.WithLabelValues("/reset-password/{uid}/{token}", "GET", "202"))
	if got != 2 {
		t.Errorf("route counter = %v, want 2", got)
	}
	if got := metricCounterValue(t, m.requestsTotal.WithLabelValues("unmatched", "GET", "404")); got != 1 {
		t.Errorf("unmatched counter = %v, want 1", got)
	}
	if got := metricHistogramCount(t, m.requestDuration.WithLabelValues("/reset-password/{uid}/{token}")); got != 2 {
		t.Errorf("duration samples = %d, want 2", got)
	}
}

func TestMetricsObserveGate(t *testing.T) {
	m := NewMetrics(WithRegistry(prometheus.NewRegistry()))

	m.ObserveGate(nil, sessionauth.Decision{Validation: sessionauth.ValidationSkipped, Action: sessionauth.ActionRedirectLogin})
	m.ObserveGate(nil, sessionauth.Decision{Validation: sessionauth.ValidationRejected, Action: sessionauth.ActionPass, Elapsed: 10 * time.Millisecond})

	if got := metricCounterValue(t, m.gateDecisions.WithLabelValues("skipped", "redirect_login")); got != 1 {
		t.Errorf("skipped/redirect_login = %v", got)
	}
	if got := metricCounterValue(t, m.gateDecisions.WithLabelValues("rejected", "pass")); got != 1 {
		t.Errorf("rejected/pass = %v", got)
	}
	if got := metricHistogramCount(t, m.validationDuration); got != 1 {
		t.Errorf("validation samples = %d, want 1", got)
	}
}

func TestMetricsObserveBackend(t *testing.T) {
	m := NewMetrics(WithRegistry(prometheus.NewRegistry()), WithNamespace("test"))

	m.ObserveBackend("login", 200, nil, time.Millisecond)
	m.ObserveBackend("login", 400, errors.New("request failed with status code 400"), time.Millisecond)
	m.ObserveBackend("login", 0, &auth.NetworkError{Op: "login", Err: context.DeadlineExceeded}, time.Millisecond)
	m.ObserveBackend("login", 0, &auth.NetworkError{Op: "login", Err: errors.New("refused")}, time.Millisecond)

	for _, outcome := range []string{"ok", "4xx", "timeout", "network"} {
		if got := metricCounterValue(t, m.backendRequests.WithLabelValues("login", outcome)); got != 1 {
			t.Errorf("outcome %s = %v, want 1", outcome, got)
		}
	}
}

func TestRequestIDAndLogger(t *testing.T) {
	var gotID string
	var hasLogger bool
	handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = RequestIDFromContext(r.Context())
		hasLogger = Logger(r.Context()) != nil
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if gotID == "" || rec.Header().Get(HeaderRequestID) != gotID || !hasLogger {
		t.Fatalf("id = %q header = %q", gotID, rec.Header().Get(HeaderRequestID))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "upstream-1")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if gotID != "upstream-1" {
		t.Fatalf("incoming id not reused: %q", gotID)
	}
}

func TestLoggerDefault(t *testing.T) {
	if Logger(context.Background()) == nil {
		t.Fatal("Logger() returned nil")
	}
}

func TestAccessLogPassesThrough(t *testing.T) {
	handler := AccessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rec.Code)
	}
}
