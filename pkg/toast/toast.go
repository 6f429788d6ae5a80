package toast

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vango-dev/authfront/pkg/session"
)

// DefaultCookieName is the cookie holding the flash id.
const DefaultCookieName = "authfront_flash"

// DefaultTTL is how long an unread toast is kept.
const DefaultTTL = 5 * time.Minute

// Type represents the toast notification type.
type Type string

const (
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypeWarning Type = "warning"
	TypeInfo    Type = "info"
)

// Toast is a single notification.
type Toast struct {
	Level   Type   `json:"level"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message"`
}

// CookiePolicy applies security defaults to the flash cookie.
type CookiePolicy interface {
	ApplyCookiePolicy(r *http.Request, cookie *http.Cookie) (*http.Cookie, error)
}

// Flasher stores toasts between requests.
type Flasher struct {
	store        session.Store
	cookieName   string
	ttl          time.Duration
	cookiePolicy CookiePolicy
	logger       *slog.Logger
	now          func() time.Time
}

// Option configures a Flasher.
type Option func(*Flasher)

// WithCookieName sets the flash cookie name.
func WithCookieName(name string) Option {
	return func(f *Flasher) {
		if name != "" {
			f.cookieName = name
		}
	}
}

// WithTTL sets how long unread toasts are kept.
func WithTTL(d time.Duration) Option {
	return func(f *Flasher) {
		if d > 0 {
			f.ttl = d
		}
	}
}

// WithCookiePolicy applies policy to the flash cookie.
func WithCookiePolicy(policy CookiePolicy) Option {
	return func(f *Flasher) {
		f.cookiePolicy = policy
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Flasher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFlasher creates a Flasher backed by store.
func NewFlasher(store session.Store, opts ...Option) *Flasher {
	f := &Flasher{
		store:      store,
		cookieName: DefaultCookieName,
		ttl:        DefaultTTL,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Push queues a toast for the next page the browser renders. Toasts
// pushed during the same request accumulate.
func (f *Flasher) Push(w http.ResponseWriter, r *http.Request, level Type, message string) error {
	return f.push(w, r, Toast{Level: level, Message: message})
}

func (f *Flasher) push(w http.ResponseWriter, r *http.Request, msg Toast) error {
	ctx := r.Context()
	id := f.id(r)

	var queued []Toast
	if id == "" {
		id = uuid.NewString()
		// Later pushes in this request must find the same id.
		r.AddCookie(&http.Cookie{Name: f.cookieName, Value: id})
	} else if data, err := f.store.Load(ctx, id); err != nil {
		return fmt.Errorf("toast: load: %w", err)
	} else if len(data) > 0 {
		if err := json.Unmarshal(data, &queued); err != nil {
			f.logger.Warn("dropping unreadable toasts", "error", err)
			queued = nil
		}
	}

	queued = append(queued, msg)
	data, err := json.Marshal(queued)
	if err != nil {
		return fmt.Errorf("toast: encode: %w", err)
	}
	if err := f.store.Save(ctx, id, data, f.now().Add(f.ttl)); err != nil {
		return fmt.Errorf("toast: save: %w", err)
	}

	f.setCookie(w, r, &http.Cookie{
		Name:   f.cookieName,
		Value:  id,
		MaxAge: int(f.ttl / time.Second),
	})
	return nil
}

// Pop returns and forgets all queued toasts. The flash cookie is cleared
// whenever one was sent.
func (f *Flasher) Pop(w http.ResponseWriter, r *http.Request) ([]Toast, error) {
	id := f.id(r)
	if id == "" {
		return nil, nil
	}
	f.setCookie(w, r, &http.Cookie{Name: f.cookieName, MaxAge: -1})

	data, err := f.store.Take(r.Context(), id)
	if err != nil {
		return nil, fmt.Errorf("toast: take: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var msgs []Toast
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("toast: decode: %w", err)
	}
	return msgs, nil
}

func (f *Flasher) id(r *http.Request) string {
	// The last cookie wins so an id added by Push is preferred.
	var id string
	for _, c := range r.Cookies() {
		if c.Name == f.cookieName {
			id = c.Value
		}
	}
	if _, err := uuid.Parse(id); err != nil {
		return ""
	}
	return id
}

func (f *Flasher) setCookie(w http.ResponseWriter, r *http.Request, cookie *http.Cookie) {
	cookie.Path = "/"
	cookie.HttpOnly = true
	cookie.SameSite = http.SameSiteLaxMode
	cookie.Secure = r.TLS != nil
	if f.cookiePolicy != nil {
		updated, err := f.cookiePolicy.ApplyCookiePolicy(r, cookie)
		if err != nil {
			f.logger.Warn("cookie policy rejected flash cookie", "error", err)
			return
		}
		cookie = updated
	}
	http.SetCookie(w, cookie)
}

// Show queues a toast with the given level.
func (f *Flasher) Show(w http.ResponseWriter, r *http.Request, level Type, message string) {
	if err := f.Push(w, r, level, message); err != nil {
		f.logger.Error("toast push failed", "level", level, "error", err)
	}
}

// Success queues a success toast.
//
//	flash.Success(w, r, "Password reset successfully")
func (f *Flasher) Success(w http.ResponseWriter, r *http.Request, message string) {
	f.Show(w, r, TypeSuccess, message)
}

// Error queues an error toast.
func (f *Flasher) Error(w http.ResponseWriter, r *http.Request, message string) {
	f.Show(w, r, TypeError, message)
}

// Warning queues a warning toast.
func (f *Flasher) Warning(w http.ResponseWriter, r *http.Request, message string) {
	f.Show(w, r, TypeWarning, message)
}

// Info queues an info toast.
func (f *Flasher) Info(w http.ResponseWriter, r *http.Request, message string) {
	f.Show(w, r, TypeInfo, message)
}

// WithTitle queues a toast with a title and message.
func (f *Flasher) WithTitle(w http.ResponseWriter, r *http.Request, level Type, title, message string) {
	if err := f.push(w, r, Toast{Level: level, Title: title, Message: message}); err != nil {
		f.logger.Error("toast push failed", "level", level, "error", err)
	}
}
