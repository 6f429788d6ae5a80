package authfront

import (
	"log/slog"
	"net/http"

	"github.com/vango-dev/authfront/internal/templates"
	"github.com/vango-dev/authfront/pkg/auth"
	"github.com/vango-dev/authfront/pkg/authstore"
	"github.com/vango-dev/authfront/pkg/backend"
	"github.com/vango-dev/authfront/pkg/middleware"
)

// requestContext is the per-request view of the app: a SessionStore
// seeded from the gate's verdict and a backend client that relays
// cookies between the browser and the backend.
type requestContext struct {
	app     *App
	w       http.ResponseWriter
	r       *http.Request
	client  *backend.Client
	store   *authstore.Store
	verdict auth.Verdict
	logger  *slog.Logger
}

func (a *App) newRequestContext(w http.ResponseWriter, r *http.Request) *requestContext {
	verdict, _ := auth.VerdictFromContext(r.Context())
	logger := middleware.Logger(r.Context())
	client := a.backend.ForRequest(w, r)

	// The gate already asked the backend, so the store starts settled.
	store := authstore.New(client, a.Flags(),
		authstore.WithSnapshot(authstore.State{User: verdict.User}),
		authstore.WithLogger(logger),
	)

	return &requestContext{
		app:     a,
		w:       w,
		r:       r,
		client:  client,
		store:   store,
		verdict: verdict,
		logger:  logger,
	}
}

// page builds template data from the store's current state and pops any
// pending toasts.
func (c *requestContext) page() *templates.Page {
	st := c.store.State()
	p := &templates.Page{
		User:          st.User,
		Authenticated: st.IsAuthenticated(),
		Error:         st.Error,
	}
	toasts, err := c.app.flash.Pop(c.w, c.r)
	if err != nil {
		c.logger.Warn("reading toasts failed", "error", err)
	}
	p.Toasts = toasts
	return p
}

func (c *requestContext) render(status int, name string, p *templates.Page) {
	c.w.Header().Set("Content-Type", "text/html; charset=utf-8")
	c.w.Header().Set("Cache-Control", "no-store")
	c.w.WriteHeader(status)
	if err := c.app.pages.Render(c.w, name, p); err != nil {
		c.logger.Error("render failed", "page", name, "error", err)
	}
}

// redirect sends a 303 so a form POST is followed by a GET.
func (c *requestContext) redirect(location string) {
	http.Redirect(c.w, c.r, location, http.StatusSeeOther)
}
