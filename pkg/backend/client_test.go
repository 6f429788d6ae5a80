package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/vango-dev/authfront/pkg/auth"
)

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c, srv
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:8000", "ftp://example.com", "http://"} {
		if _, err := New(raw); err == nil {
			t.Errorf("New(%q) error = nil, want error", raw)
		}
	}
}

func TestCurrentUserForwardsCookie(t *testing.T) {
	var gotCookie string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/user/" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if ck, err := r.Cookie("my-app-auth"); err == nil {
			gotCookie = ck.Value
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": 42,
			"email": "a@example.com",
			"first_name": "Ada",
			"email_verified_at": "2024-01-02T03:04:05Z"
		}`)
	}))

	user, raw, err := c.CurrentUser(context.Background(), &http.Cookie{Name: "my-app-auth", Value: "tok"})
	if err != nil {
		t.Fatalf("CurrentUser() error = %v", err)
	}
	if gotCookie != "tok" {
		t.Errorf("backend saw cookie %q, want tok", gotCookie)
	}
	if user.ID != "42" || user.Email != "a@example.com" || !user.Verified() {
		t.Errorf("user = %+v", user)
	}
	if !json.Valid(raw) {
		t.Fatalf("raw user is not JSON: %s", raw)
	}
	for _, b := range raw {
		if b == '\n' {
			t.Fatal("raw user was not compacted")
		}
	}
}

func TestCurrentUserRejected(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusInternalServerError} {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		_, _, err := c.CurrentUser(context.Background(), &http.Cookie{Name: "s", Value: "v"})
		var invalid *auth.TokenInvalidError
		if !errors.As(err, &invalid) || invalid.Status != status {
			t.Errorf("status %d: err = %v, want TokenInvalidError", status, err)
		}
	}
}

func TestCurrentUserWithoutIdentity(t *testing.T) {
	for _, body := range []string{`null`, `{}`, `{"first_name":"Ada"}`} {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, body)
		}))

		user, _, err := c.CurrentUser(context.Background(), &http.Cookie{Name: "s", Value: "v"})
		if !errors.Is(err, ErrEmptyUser) || user != nil {
			t.Errorf("body %s: user = %v, err = %v, want ErrEmptyUser", body, user, err)
		}
		var invalid *auth.TokenInvalidError
		if errors.As(err, &invalid) {
			t.Errorf("body %s: reported as rejected, want unreachable", body)
		}

		if _, err := c.User(context.Background()); !errors.Is(err, ErrEmptyUser) {
			t.Errorf("body %s: User() err = %v, want ErrEmptyUser", body, err)
		}
	}
}

func TestCurrentUserNon200Success(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	_, _, err := c.CurrentUser(context.Background(), &http.Cookie{Name: "s", Value: "v"})
	var invalid *auth.TokenInvalidError
	if !errors.As(err, &invalid) || invalid.Status != http.StatusNoContent {
		t.Fatalf("err = %v, want TokenInvalidError(204)", err)
	}
}

func TestCurrentUserNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c, err := New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	srv.Close()

	_, _, err = c.CurrentUser(context.Background(), &http.Cookie{Name: "s", Value: "v"})
	var netErr *auth.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("err = %v, want NetworkError", err)
	}
}

func TestCurrentUserTimeout(t *testing.T) {
	release := make(chan struct{})
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err := c.CurrentUser(ctx, &http.Cookie{Name: "s", Value: "v"})
	var netErr *auth.NetworkError
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Fatalf("err = %v, want timeout NetworkError", err)
	}
}

func TestPostBodies(t *testing.T) {
	var mu sync.Mutex
	bodies := map[string]map[string]string{}
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("%s: method = %s", r.URL.Path, r.Method)
		}
		body := map[string]string{}
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("%s: decode: %v", r.URL.Path, err)
			}
		}
		mu.Lock()
		bodies[r.URL.Path] = body
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	ctx := context.Background()

	calls := []func() error{
		func() error { return c.Login(ctx, "a@example.com", "pw") },
		func() error { return c.Register(ctx, "a@example.com", "p1", "p2") },
		func() error { return c.ResendVerification(ctx, "a@example.com") },
		func() error { return c.VerifyEmail(ctx, "key-1") },
		func() error { return c.Logout(ctx) },
		func() error { return c.RequestPasswordReset(ctx, "a@example.com") },
		func() error { return c.ConfirmPasswordReset(ctx, "uid", "tok", "n1", "n2") },
	}
	for i, call := range calls {
		if err := call(); err != nil {
			t.Fatalf("call %d error = %v", i, err)
		}
	}

	want := map[string]map[string]string{
		"/api/auth/login/":                     {"email": "a@example.com", "password": "pw"},
		"/api/auth/registration/":              {"email": "a@example.com", "password1": "p1", "password2": "p2"},
		"/api/auth/registration/resend-email/": {"email": "a@example.com"},
		"/api/auth/registration/verify-email/": {"key": "key-1"},
		"/api/auth/logout/":                    {},
		"/api/auth/password/reset/":            {"email": "a@example.com"},
		"/api/auth/password/reset/confirm/":    {"uid": "uid", "token": "tok", "new_password1": "n1", "new_password2": "n2"},
	}
	for path, fields := range want {
		got, ok := bodies[path]
		if !ok {
			t.Errorf("%s was not called", path)
			continue
		}
		for k, v := range fields {
			if got[k] != v {
				t.Errorf("%s: %s = %q, want %q", path, k, got[k], v)
			}
		}
	}
}

func TestAPIErrorPayload(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"non_field_errors":["Unable to log in with provided credentials."]}`)
	}))

	err := c.Login(context.Background(), "a@example.com", "bad")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Endpoint != "login" {
		t.Errorf("APIError = %+v", apiErr)
	}
	if got := auth.Classify(err).Message(""); got != "Unable to log in with provided credentials." {
		t.Errorf("classified message = %q", got)
	}
}

func TestAPIErrorHTMLBody(t *testing.T) {
	err := &APIError{Status: 502, Body: []byte("<html>Bad Gateway</html>")}
	if err.Payload() != nil {
		t.Error("Payload() should be nil for a non-JSON body")
	}
	if got := auth.Classify(err).Message("default"); got != "request failed with status code 502" {
		t.Errorf("message = %q", got)
	}
}

func TestBasePathIsKept(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	}))
	defer srv.Close()

	c, err := New(srv.URL + "/backend")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Logout(context.Background()); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/backend/api/auth/logout/" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestObserverAndEndpoints(t *testing.T) {
	type observed struct {
		endpoint string
		status   int
		err      error
	}
	var got []observed
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		io.WriteString(w, `{"id":"US1","email":"a@example.com"}`)
	}),
		WithEndpoints(Endpoints{CurrentUser: "/me", Logout: "/bye"}),
		WithObserver(func(endpoint string, status int, err error, d time.Duration) {
			got = append(got, observed{endpoint, status, err})
		}),
	)

	if _, err := c.User(context.Background()); err != nil {
		t.Fatalf("User() error = %v", err)
	}
	_ = c.Logout(context.Background())

	if len(got) != 2 {
		t.Fatalf("observed %d calls, want 2", len(got))
	}
	if got[0].endpoint != "current-user" || got[0].status != 200 || got[0].err != nil {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].endpoint != "logout" || got[1].status != 404 || got[1].err == nil {
		t.Errorf("second = %+v", got[1])
	}
}

func TestProtected(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":"hello","authenticated":true,"user":{"id":"US1","email":"a@example.com"},"timestamp":"2024-05-01T10:00:00Z"}`)
	}))
	detail, err := c.Protected(context.Background())
	if err != nil {
		t.Fatalf("Protected() error = %v", err)
	}
	if detail.Message != "hello" || !detail.Authenticated || detail.User.Email != "a@example.com" {
		t.Errorf("detail = %+v", detail)
	}
}
