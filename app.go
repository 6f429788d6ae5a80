package authfront

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/vango-dev/authfront/internal/config"
	"github.com/vango-dev/authfront/internal/templates"
	"github.com/vango-dev/authfront/pkg/auth"
	"github.com/vango-dev/authfront/pkg/auth/sessionauth"
	"github.com/vango-dev/authfront/pkg/authstore"
	"github.com/vango-dev/authfront/pkg/backend"
	"github.com/vango-dev/authfront/pkg/middleware"
	"github.com/vango-dev/authfront/pkg/session"
	"github.com/vango-dev/authfront/pkg/toast"
)

// =============================================================================
// App Type
// =============================================================================

// App is the authfront web application. It gates every page on the
// backend session cookie and renders the account pages.
//
//	cfg, _ := config.Load()
//	app, err := authfront.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer app.Close()
//	http.ListenAndServe(cfg.Addr(), app)
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	router  chi.Router
	backend *backend.Client
	gate    *sessionauth.Gate
	flash   *toast.Flasher
	pages   *templates.Renderer

	flashStore session.Store
	registry   *prometheus.Registry
	metrics    *middleware.Metrics
}

// New builds the application from cfg.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}

	pages, err := templates.New()
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:    cfg,
		logger: o.logger,
		pages:  pages,
	}

	if cfg.MetricsEnabled {
		a.registry = o.registry
		if a.registry == nil {
			a.registry = prometheus.NewRegistry()
			a.registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
		}
		a.metrics = middleware.NewMetrics(middleware.WithRegistry(a.registry))
	}

	backendOpts := []backend.Option{
		backend.WithLogger(o.logger),
		backend.WithTracer(o.tracerProvider.Tracer("github.com/vango-dev/authfront/pkg/backend")),
	}
	if o.httpClient != nil {
		backendOpts = append(backendOpts, backend.WithHTTPClient(o.httpClient))
	}
	if a.metrics != nil {
		backendOpts = append(backendOpts, backend.WithObserver(a.metrics.ObserveBackend))
	}
	a.backend, err = backend.New(cfg.APIURL, backendOpts...)
	if err != nil {
		return nil, err
	}

	cookiePolicy := sessionauth.NewSecureCookiePolicy(cfg.CookieDomain, cfg.TrustedProxies, o.logger)

	policy := sessionauth.DefaultPolicy()
	policy.Protected = cfg.ProtectedRoutes
	policy.AuthOnly = cfg.AuthRoutes
	gateOpts := []sessionauth.Option{
		sessionauth.WithCookieName(cfg.SessionCookieName),
		sessionauth.WithRefreshCookieName(cfg.RefreshCookieName),
		sessionauth.WithPolicy(policy),
		sessionauth.WithTimeout(cfg.ValidateTimeout),
		sessionauth.WithCookiePolicy(cookiePolicy),
		sessionauth.WithLogger(o.logger),
	}
	if a.metrics != nil {
		gateOpts = append(gateOpts, sessionauth.WithDecisionHook(a.metrics.ObserveGate))
	}
	a.gate = sessionauth.New(a.backend, gateOpts...)

	a.flashStore = o.flashStore
	if a.flashStore == nil {
		a.flashStore, err = newFlashStore(cfg)
		if err != nil {
			return nil, err
		}
	}
	a.flash = toast.NewFlasher(a.flashStore,
		toast.WithCookiePolicy(cookiePolicy),
		toast.WithLogger(o.logger),
	)

	a.router = a.routes(o)
	return a, nil
}

func newFlashStore(cfg *config.Config) (session.Store, error) {
	if cfg.RedisURL == "" {
		return session.NewMemoryStore(), nil
	}
	store, err := session.NewRedisStoreFromURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("flash store: %w", err)
	}
	return store, nil
}

// =============================================================================
// Routing
// =============================================================================

func (a *App) routes(o *options) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID(a.logger))
	r.Use(middleware.AccessLog)
	r.Use(middleware.OpenTelemetry(
		middleware.WithTracerProvider(o.tracerProvider),
		middleware.WithIncludeAuthStatus(true),
	))
	if a.metrics != nil {
		r.Use(a.metrics.Handler)
	}
	r.Use(a.gate.Middleware())

	r.Get("/", a.handleHome)
	r.Get("/login", a.handleLoginPage)
	r.Post("/login", a.handleLogin)
	r.Get("/signup", a.handleSignupPage)
	r.Post("/signup", a.handleSignup)
	r.Get("/verify-email", a.handleVerifyEmailPage)
	r.Post("/verify-email", a.handleResendVerification)
	r.Get("/confirm-email/{key}", a.handleConfirmEmail)
	r.Get("/forgot-password", a.handleForgotPasswordPage)
	r.Post("/forgot-password", a.handleForgotPassword)
	r.Get("/reset-password/{uid}/{token}", a.handleResetPasswordPage)
	r.Post("/reset-password/{uid}/{token}", a.handleResetPassword)
	r.Post("/logout", a.handleLogout)
	r.With(auth.RequireAuthenticated(http.HandlerFunc(a.redirectToLogin))).Get("/protected", a.handleProtected)
	r.Get("/healthz", a.handleHealth)

	if a.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	}

	r.NotFound(a.handleNotFound)
	return r
}

// =============================================================================
// HTTP Handler Interface
// =============================================================================

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// Handler returns the App as an http.Handler.
func (a *App) Handler() http.Handler {
	return a
}

// =============================================================================
// Accessors
// =============================================================================

// Config returns the configuration the App was built with.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Gate returns the request gate.
func (a *App) Gate() *sessionauth.Gate {
	return a.gate
}

// Backend returns the shared backend client.
func (a *App) Backend() *backend.Client {
	return a.backend
}

// Flags returns the auth flow switches handed to every SessionStore.
func (a *App) Flags() authstore.Flags {
	return authstore.Flags{
		EmailVerificationRequired: a.cfg.EmailVerificationRequired,
		LoginOnRegistration:       a.cfg.LoginOnRegistration,
	}
}

// Close releases the flash store.
func (a *App) Close() error {
	return a.flashStore.Close()
}
