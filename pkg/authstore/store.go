// Package authstore holds the authentication state of one client: the
// current user, a loading flag and the last error message.
//
// A Store is built per client context (one browser request in the web
// app, one process in the shell) and is the only thing that mutates that
// state. Operations may run concurrently; their writes are last-write-wins.
package authstore

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vango-dev/authfront/pkg/auth"
)

// API is the backend surface the store drives.
type API interface {
	User(ctx context.Context) (*auth.User, error)
	Login(ctx context.Context, email, password string) error
	Register(ctx context.Context, email, password1, password2 string) error
	ResendVerification(ctx context.Context, email string) error
	VerifyEmail(ctx context.Context, key string) error
	Logout(ctx context.Context) error
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, uid, token, password1, password2 string) error
}

// Flags are deployment settings fixed for the life of a store.
type Flags struct {
	// EmailVerificationRequired means new accounts cannot log in until
	// their address is confirmed.
	EmailVerificationRequired bool

	// LoginOnRegistration means the backend starts a session as part of
	// a successful registration.
	LoginOnRegistration bool
}

// State is a snapshot of the store.
type State struct {
	User      *auth.User
	IsLoading bool

	// Error is the last failure message, empty when there is none.
	Error string
}

// IsAuthenticated reports whether a user is present.
func (s State) IsAuthenticated() bool {
	return s.User != nil
}

// Store is the authentication state holder.
type Store struct {
	api    API
	flags  Flags
	logger *slog.Logger

	mu        sync.RWMutex
	state     State
	observers []func(State)
}

// Option configures a Store.
type Option func(*Store)

// WithSnapshot starts the store from a known state instead of the
// default "loading, no user".
func WithSnapshot(s State) Option {
	return func(st *Store) {
		st.state = s
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(st *Store) {
		if logger != nil {
			st.logger = logger
		}
	}
}

// WithObserver registers fn to be called with the new state after every
// change. fn runs outside the store lock.
func WithObserver(fn func(State)) Option {
	return func(st *Store) {
		if fn != nil {
			st.observers = append(st.observers, fn)
		}
	}
}

// New creates a store.
func New(api API, flags Flags, opts ...Option) *Store {
	s := &Store{
		api:    api,
		flags:  flags,
		logger: slog.Default(),
		state:  State{IsLoading: true},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Flags returns the store's flags.
func (s *Store) Flags() Flags {
	return s.flags
}

// ClearError drops the recorded error.
func (s *Store) ClearError() {
	s.update(func(st *State) {
		st.Error = ""
	})
}

func (s *Store) update(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	snapshot := s.state
	observers := s.observers
	s.mu.Unlock()

	for _, o := range observers {
		o(snapshot)
	}
}

// begin marks an operation as started.
func (s *Store) begin() {
	s.update(func(st *State) {
		st.IsLoading = true
		st.Error = ""
	})
}
