package authfront

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type fakeAccount struct {
	ID       int
	Email    string
	Password string
	Verified bool
}

// fakeBackend mimics the dj-rest-auth endpoints the app talks to.
type fakeBackend struct {
	mu             sync.Mutex
	accounts       map[string]*fakeAccount
	sessions       map[string]string
	nextID         int
	verifyRequired bool
	loginOnSignup  bool
	requests       []string
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	fb := &fakeBackend{
		accounts:      map[string]*fakeAccount{},
		sessions:      map[string]string{},
		nextID:        1,
		loginOnSignup: true,
	}
	fb.addAccount("ada@example.com", "correct-horse", true)
	fb.addAccount("new@example.com", "correct-horse", false)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/user/", fb.user)
	mux.HandleFunc("/api/auth/login/", fb.login)
	mux.HandleFunc("/api/auth/registration/", fb.register)
	mux.HandleFunc("/api/auth/registration/resend-email/", fb.ok("Verification e-mail sent."))
	mux.HandleFunc("/api/auth/registration/verify-email/", fb.verify)
	mux.HandleFunc("/api/auth/logout/", fb.logout)
	mux.HandleFunc("/api/auth/password/reset/", fb.ok("Password reset e-mail has been sent."))
	mux.HandleFunc("/api/auth/password/reset/confirm/", fb.resetConfirm)
	mux.HandleFunc("/api/users/protected/", fb.protected)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fb.mu.Lock()
		fb.requests = append(fb.requests, r.Method+" "+r.URL.Path)
		fb.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return fb, srv
}

func (fb *fakeBackend) addAccount(email, password string, verified bool) *fakeAccount {
	acc := &fakeAccount{ID: fb.nextID, Email: email, Password: password, Verified: verified}
	fb.nextID++
	fb.accounts[email] = acc
	return acc
}

// session creates a session for email and returns its token.
func (fb *fakeBackend) session(email string) string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	token := "tok-" + email
	fb.sessions[token] = email
	return token
}

func (fb *fakeBackend) current(r *http.Request) *fakeAccount {
	c, err := r.Cookie("my-app-auth")
	if err != nil {
		return nil
	}
	fb.mu.Lock()
	defer fb.mu.Unlock()
	email, ok := fb.sessions[c.Value]
	if !ok {
		return nil
	}
	return fb.accounts[email]
}

func (fb *fakeBackend) startSession(w http.ResponseWriter, email string) {
	token := fb.session(email)
	http.SetCookie(w, &http.Cookie{Name: "my-app-auth", Value: token, Path: "/", Domain: "backend.internal", HttpOnly: true})
	http.SetCookie(w, &http.Cookie{Name: "my-app-refresh-token", Value: "refresh-" + token, Path: "/", HttpOnly: true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request) map[string]string {
	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)
	return body
}

func userJSON(acc *fakeAccount) map[string]any {
	u := map[string]any{"id": acc.ID, "email": acc.Email, "first_name": "", "last_name": ""}
	if acc.Verified {
		u["email_verified_at"] = "2024-01-02T03:04:05Z"
	}
	return u
}

func (fb *fakeBackend) user(w http.ResponseWriter, r *http.Request) {
	acc := fb.current(r)
	if acc == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Authentication credentials were not provided."})
		return
	}
	writeJSON(w, http.StatusOK, userJSON(acc))
}

func (fb *fakeBackend) login(w http.ResponseWriter, r *http.Request) {
	body := readJSON(r)
	fb.mu.Lock()
	acc, ok := fb.accounts[body["email"]]
	fb.mu.Unlock()
	switch {
	case !ok || acc.Password != body["password"]:
		writeJSON(w, http.StatusBadRequest, map[string][]string{"non_field_errors": {"Unable to log in with provided credentials."}})
	case !acc.Verified:
		writeJSON(w, http.StatusBadRequest, map[string][]string{"non_field_errors": {"E-mail is not verified."}})
	default:
		fb.startSession(w, acc.Email)
		writeJSON(w, http.StatusOK, map[string]any{"user": userJSON(acc)})
	}
}

func (fb *fakeBackend) register(w http.ResponseWriter, r *http.Request) {
	body := readJSON(r)
	fb.mu.Lock()
	if _, exists := fb.accounts[body["email"]]; exists {
		fb.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, map[string][]string{"email": {"A user is already registered with this e-mail address."}})
		return
	}
	acc := fb.addAccount(body["email"], body["password1"], !fb.verifyRequired)
	verifyRequired, loginOnSignup := fb.verifyRequired, fb.loginOnSignup
	fb.mu.Unlock()

	if verifyRequired {
		writeJSON(w, http.StatusCreated, map[string]string{"detail": "Verification e-mail sent."})
		return
	}
	if loginOnSignup {
		fb.startSession(w, acc.Email)
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": userJSON(acc)})
}

func (fb *fakeBackend) verify(w http.ResponseWriter, r *http.Request) {
	switch readJSON(r)["key"] {
	case "valid-key":
		writeJSON(w, http.StatusOK, map[string]string{"detail": "ok"})
	case "used-key":
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Email already confirmed."})
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
	}
}

func (fb *fakeBackend) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie("my-app-auth"); err == nil {
		fb.mu.Lock()
		delete(fb.sessions, c.Value)
		fb.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: "my-app-auth", Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Successfully logged out."})
}

func (fb *fakeBackend) resetConfirm(w http.ResponseWriter, r *http.Request) {
	body := readJSON(r)
	if body["token"] != "good-token" {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"token": {"Invalid value"}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Password has been reset with the new password."})
}

func (fb *fakeBackend) protected(w http.ResponseWriter, r *http.Request) {
	acc := fb.current(r)
	if acc == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Authentication credentials were not provided."})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "This is a protected endpoint.",
		"user":          userJSON(acc),
		"authenticated": true,
		"timestamp":     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
}

func (fb *fakeBackend) ok(detail string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"detail": detail})
	}
}
