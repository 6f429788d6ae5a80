package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized is returned when authentication is required but not present.
var ErrUnauthorized = errors.New("unauthorized: authentication required")

// ErrUnauthenticated marks a current-user lookup that the backend answered
// with 401 or 403. It means "no session yet", not a failure worth showing.
var ErrUnauthenticated = errors.New("auth: not authenticated")

// NetworkError is a backend call that failed before any HTTP response
// was received: dial errors, resets, timeouts.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	if e.Err == nil {
		return e.Op + ": network error"
	}
	return e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline.
func (e *NetworkError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(e.Err, &te) && te.Timeout()
}

// TokenInvalidError is returned when the backend answers a session
// validation with anything other than 200.
type TokenInvalidError struct {
	Status int
}

func (e *TokenInvalidError) Error() string {
	return fmt.Sprintf("session token rejected with status %d", e.Status)
}

func (e *TokenInvalidError) StatusCode() int { return e.Status }

// StatusCoder is implemented by errors that carry a backend HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// PayloadCarrier is implemented by errors that carry a JSON response body.
type PayloadCarrier interface {
	Payload() []byte
}

// StatusCode extracts the backend HTTP status from err, if any.
func StatusCode(err error) (int, bool) {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode(), true
	}
	return 0, false
}

// IsUnauthenticated reports whether err means the caller simply has no
// valid session (401/403).
func IsUnauthenticated(err error) bool {
	if errors.Is(err, ErrUnauthenticated) {
		return true
	}
	status, ok := StatusCode(err)
	return ok && (status == http.StatusUnauthorized || status == http.StatusForbidden)
}

type verdictContextKey struct{}

// WithVerdict returns a copy of ctx carrying v.
func WithVerdict(ctx context.Context, v Verdict) context.Context {
	return context.WithValue(ctx, verdictContextKey{}, v)
}

// VerdictFromContext returns the verdict recorded by the request gate.
func VerdictFromContext(ctx context.Context) (Verdict, bool) {
	if ctx == nil {
		return Verdict{}, false
	}
	v, ok := ctx.Value(verdictContextKey{}).(Verdict)
	return v, ok
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (*User, bool) {
	v, ok := VerdictFromContext(ctx)
	if !ok || !v.Authenticated || v.User == nil {
		return nil, false
	}
	return v.User, true
}

// IsAuthenticated reports whether the gate authenticated this request.
func IsAuthenticated(ctx context.Context) bool {
	_, ok := UserFromContext(ctx)
	return ok
}
