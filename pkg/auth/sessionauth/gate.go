// Package sessionauth gates page requests on the backend session cookie.
//
// The Gate validates the cookie once per request against the backend's
// current-user endpoint, publishes the verdict to downstream handlers and
// enforces the route policy: protected pages need a user, auth-only pages
// (login, signup...) send signed-in users home.
package sessionauth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vango-dev/authfront/pkg/auth"
)

const (
	// HeaderAuthenticated carries "true" or "false" on every gated response.
	HeaderAuthenticated = "X-Auth-Authenticated"
	// HeaderUser carries the compact user JSON when authenticated.
	HeaderUser = "X-Auth-User"

	DefaultCookieName        = "my-app-auth"
	DefaultRefreshCookieName = "my-app-refresh-token"
	DefaultTimeout           = 3 * time.Second
)

// Validator checks a session cookie with the backend. A non-200 answer
// must be reported as *auth.TokenInvalidError; any other error is taken
// as the backend being unreachable.
type Validator interface {
	CurrentUser(ctx context.Context, session *http.Cookie) (*auth.User, json.RawMessage, error)
}

// CookiePolicy applies security defaults to cookies set by the gate.
type CookiePolicy interface {
	ApplyCookiePolicy(r *http.Request, cookie *http.Cookie) (*http.Cookie, error)
}

// Validation is the outcome of the backend check.
type Validation int

const (
	ValidationSkipped Validation = iota
	ValidationOK
	ValidationRejected
	ValidationUnreachable
)

func (v Validation) String() string {
	switch v {
	case ValidationOK:
		return "ok"
	case ValidationRejected:
		return "rejected"
	case ValidationUnreachable:
		return "unreachable"
	default:
		return "skipped"
	}
}

// Action is what the gate does with the request.
type Action int

const (
	ActionPass Action = iota
	ActionRedirectHome
	ActionRedirectLogin
	ActionBypass
)

func (a Action) String() string {
	switch a {
	case ActionRedirectHome:
		return "redirect_home"
	case ActionRedirectLogin:
		return "redirect_login"
	case ActionBypass:
		return "bypass"
	default:
		return "pass"
	}
}

// Decision is the full result of evaluating one request.
type Decision struct {
	Path       string
	Class      RouteClass
	Verdict    auth.Verdict
	Validation Validation
	Action     Action

	// Location is set for redirects.
	Location string

	// ClearCookies means the session and refresh cookies must be deleted.
	ClearCookies bool

	// Err is the validation error, if any.
	Err error

	// Elapsed is the time spent validating.
	Elapsed time.Duration
}

// Gate is the request gate.
type Gate struct {
	validator         Validator
	cookieName        string
	refreshCookieName string
	policy            Policy
	timeout           time.Duration
	redirectStatus    int
	cookiePolicy      CookiePolicy
	logger            *slog.Logger
	hook              func(*http.Request, Decision)
}

// Option configures a Gate.
type Option func(*Gate)

// WithCookieName sets the session cookie name.
func WithCookieName(name string) Option {
	return func(g *Gate) {
		if name != "" {
			g.cookieName = name
		}
	}
}

// WithRefreshCookieName sets the name of the refresh cookie deleted
// alongside the session cookie.
func WithRefreshCookieName(name string) Option {
	return func(g *Gate) {
		if name != "" {
			g.refreshCookieName = name
		}
	}
}

// WithPolicy sets the route policy.
func WithPolicy(p Policy) Option {
	return func(g *Gate) {
		g.policy = p
	}
}

// WithTimeout bounds the validation call.
func WithTimeout(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithRedirectStatus sets the status used for GET and HEAD redirects
// (default 307). Other methods are always redirected with 303.
func WithRedirectStatus(code int) Option {
	return func(g *Gate) {
		if code >= 300 && code < 400 {
			g.redirectStatus = code
		}
	}
}

// WithCookiePolicy applies a cookie policy to cookies the gate deletes.
func WithCookiePolicy(policy CookiePolicy) Option {
	return func(g *Gate) {
		g.cookiePolicy = policy
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithDecisionHook registers fn to observe every decision.
func WithDecisionHook(fn func(*http.Request, Decision)) Option {
	return func(g *Gate) {
		g.hook = fn
	}
}

// New creates a gate.
func New(validator Validator, opts ...Option) *Gate {
	g := &Gate{
		validator:         validator,
		cookieName:        DefaultCookieName,
		refreshCookieName: DefaultRefreshCookieName,
		policy:            DefaultPolicy(),
		timeout:           DefaultTimeout,
		redirectStatus:    http.StatusTemporaryRedirect,
		logger:            slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CookieName returns the session cookie name.
func (g *Gate) CookieName() string { return g.cookieName }

// Policy returns the route policy.
func (g *Gate) Policy() Policy { return g.policy }

// Evaluate decides what to do with a request for target carrying the
// given session cookie (nil when absent). Only the validation call blocks.
func (g *Gate) Evaluate(ctx context.Context, target *url.URL, session *http.Cookie) Decision {
	d := Decision{Path: target.Path, Class: g.policy.Classify(target.Path)}
	if d.Class == RouteBypass {
		d.Action = ActionBypass
		return d
	}

	if session != nil && session.Value != "" {
		g.validate(ctx, session, &d)
	}

	switch {
	case d.Class == RouteAuthOnly && d.Verdict.Authenticated:
		d.Action = ActionRedirectHome
		d.Location = g.policy.HomePath
	case d.Class == RouteProtected && !d.Verdict.Authenticated:
		d.Action = ActionRedirectLogin
		d.Location = g.loginLocation(target)
	default:
		d.Action = ActionPass
	}
	return d
}

func (g *Gate) validate(ctx context.Context, session *http.Cookie, d *Decision) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	user, raw, err := g.validator.CurrentUser(ctx, session)
	d.Elapsed = time.Since(start)

	var invalid *auth.TokenInvalidError
	switch {
	case err == nil && user != nil:
		d.Validation = ValidationOK
		d.Verdict = auth.Verdict{Authenticated: true, User: user, RawUser: raw}
	case errors.As(err, &invalid):
		d.Validation = ValidationRejected
		d.ClearCookies = true
		d.Err = err
		g.logger.Debug("session rejected by backend", "status", invalid.Status, "path", d.Path)
	default:
		if err == nil {
			err = errors.New("sessionauth: validator returned no user")
		}
		d.Validation = ValidationUnreachable
		d.Err = err
		g.logger.Warn("session validation failed", "error", err, "path", d.Path, "elapsed", d.Elapsed)
	}
}

func (g *Gate) loginLocation(target *url.URL) string {
	original := target.Path
	if target.RawQuery != "" {
		original += "?" + target.RawQuery
	}
	return g.policy.LoginPath + "?" + url.Values{"redirect": {original}}.Encode()
}

// Middleware runs the gate in front of next.
func (g *Gate) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := r.Cookie(g.cookieName)
			if err != nil {
				session = nil
			}

			d := g.Evaluate(r.Context(), r.URL, session)
			if g.hook != nil {
				g.hook(r, d)
			}
			if d.Action == ActionBypass {
				next.ServeHTTP(w, r)
				return
			}

			if d.ClearCookies {
				g.ClearSessionCookies(w, r)
			}
			writeVerdict(w.Header(), d.Verdict)

			if d.Action == ActionRedirectHome || d.Action == ActionRedirectLogin {
				http.Redirect(w, r, d.Location, g.RedirectCode(r))
				return
			}

			ctx := auth.WithVerdict(r.Context(), d.Verdict)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RedirectCode returns the status for redirecting r. A form post is
// answered with 303 so the browser follows up with a GET.
func (g *Gate) RedirectCode(r *http.Request) int {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return g.redirectStatus
	}
	return http.StatusSeeOther
}

func writeVerdict(h http.Header, v auth.Verdict) {
	h.Set(HeaderAuthenticated, strconv.FormatBool(v.Authenticated))
	if v.Authenticated && len(v.RawUser) > 0 {
		h.Set(HeaderUser, string(v.RawUser))
	} else {
		h.Del(HeaderUser)
	}
}

// ClearSessionCookies deletes the session and refresh cookies.
func (g *Gate) ClearSessionCookies(w http.ResponseWriter, r *http.Request) {
	g.clearCookie(w, r, g.cookieName)
	g.clearCookie(w, r, g.refreshCookieName)
}

func (g *Gate) clearCookie(w http.ResponseWriter, r *http.Request, name string) {
	cookie := &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r != nil && r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	}
	if g.cookiePolicy != nil {
		updated, err := g.cookiePolicy.ApplyCookiePolicy(r, cookie)
		if err != nil {
			g.logger.Warn("cookie policy rejected cookie deletion", "cookie", name, "error", err)
			return
		}
		cookie = updated
	}
	http.SetCookie(w, cookie)
}
