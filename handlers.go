package authfront

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vango-dev/authfront/internal/templates"
	"github.com/vango-dev/authfront/pkg/auth"
	"github.com/vango-dev/authfront/pkg/authstore"
)

// User-facing messages.
const (
	msgLoginWelcome     = "Welcome back! You have successfully logged in."
	msgSignupWelcome    = "Account created successfully! Welcome to the app."
	msgLoggedOut        = "You have been logged out."
	msgPasswordMismatch = "Passwords do not match."
	msgSignupSuccess    = "Account created! Please log in to continue."
	msgResetSuccess     = "Your password has been reset. Please log in with your new password."
	msgEmailVerified    = "Your email address has been confirmed. Please log in to continue."
	msgResetLinkSent    = "If an account with that email exists, a password reset link has been sent. Please check your inbox (and spam folder)."
	msgResendFailed     = "Failed to resend email. Please try again later."
	msgConfirmed        = "Your email has been successfully verified!"
	msgAlreadyConfirmed = "This email address has already been verified."
	msgProtectedFailed  = "Failed to load protected data."
)

// =============================================================================
// Pages
// =============================================================================

func (a *App) handleHome(w http.ResponseWriter, r *http.Request) {
	c := a.newRequestContext(w, r)
	c.render(http.StatusOK, templates.Home, c.page())
}

func (a *App) handleNotFound(w http.ResponseWriter, r *http.Request) {
	c := a.newRequestContext(w, r)
	p := c.page()
	p.Code = http.StatusNotFound
	c.render(http.StatusNotFound, templates.Error, p)
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// =============================================================================
// Login
// =============================================================================

func (a *App) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	c := a.newRequestContext(w, r)
	q := r.URL.Query()

	p := c.page()
	p.Email = q.Get("email")
	p.Redirect = q.Get("redirect")
	switch {
	case q.Get("signup_success") == "true":
		p.Notice = msgSignupSuccess
	case q.Get("password_reset_success") == "true":
		p.Notice = msgResetSuccess
	case q.Get("message") == "email_verified":
		p.Notice = msgEmailVerified
	}
	c.render(http.StatusOK, templates.Login, p)
}

func (a *App) handleLogin(w http.ResponseWriter, r *http.Request) {
	c := a.newRequestContext(w, r)
	email := strings.TrimSpace(r.PostFormValue("email"))
	redirect := r.PostFormValue("redirect")

	err := c.store.Login(r.Context(), email, r.PostFormValue("password"))
	if err == nil && c.store.State().IsAuthenticated() {
		a.flash.Success(w, r, msgLoginWelcome)
		c.redirect(safeRedirect(redirect))
		return
	}

	p := c.page()
	p.Email = email
	p.Redirect = redirect

	var unverified *authstore.EmailVerificationError
	if errors.As(err, &unverified) {
		p.ResendOffer = true
		p.Email = unverified.Email
	}
	if p.Error == "" {
		// Login succeeded but the session did not stick.
		p.Error = "Login failed."
	}
	c.render(http.StatusUnprocessableEntity, templates.Login, p)
}

// =============================================================================
// Signup
// =============================================================================

func (a *App) handleSignupPage(w http.ResponseWriter, r *http.Request) {
	c := a.newRequestContext(w, r)
	c.render(http.StatusOK, templates.Signup, c.page())
}

func (a *App) handleSignup(w http.ResponseWriter, r *http.Request) {
	c := a.newRequestContext(w, r)
	email := strings.TrimSpace(r.PostFormValue("email"))
	password1 := r.PostFormValue("password1")
	password2 := r.PostFormValue("password2")

	if password1 != password2 {
		p := c.page()
		p.Email = email
		p.Error = msgPasswordMismatch
		c.render(http.StatusUnprocessableEntity, templates.Signup, p)
		return
	}

	res, err := c.store.Signup(r.Context(), email, password1, password2)
	if err != nil {
		p := c.page()
		p.Email = email
		c.render(http.StatusUnprocessableEntity, templates.Signup, p)
		return
	}

	switch {
	case res.RequiresVerification:
		c.redirect("/verify-email?" + url.Values{"email": {res.Email}}.Encode())
	case c.store.State().IsAuthenticated():
		a.flash.Success(w, r, msgSignupWelcome)
		c.redirect("/")
	default:
		c.redirect("/login?" + url.Values{"signup_success": {"true"}, "email": {res.Email}}.Encode())
	}
}

// =============================================================================
// Email verification
// =============================================================================

func (a *App) handleVerifyEmailPage(w http.ResponseWriter, r *http.Request) {
	c := a.newRequestContext(w, r)
	if c.verdict.Authenticated && c.verdict.User.Verified() {
		c.redirect(safeRedirect(r.URL.Query().Get("redirect")))
		return
	}
	p := c.page()
	p.Email = r.URL.Query().Get("email")
	c.render(http.StatusOK, templates.VerifyEmail, p)
}

func (a *App) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	c := a.newRequestContext(w, r)
	email := strings.TrimSpace(r.PostFormValue("email"))

	err := c.store.ResendVerificationEmail(r.Context(), email)
	p := c.page()
	p.Email = email
	status := http.StatusOK
	if err != nil {
		c.logger.Info("resend verification failed", "error", err)
		p.Error = msgResendFailed
		status = http.StatusUnprocessableEntity
	} else {
		p.Message = "A new verification email has been sent to " + email + ". Please check your inbox (and spam folder)."
	}
	c.render(status, templates.VerifyEmail, p)
}

func (a *App) handleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	c := a.newRequestContext(w, r)
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil || key == "" {
		p := c.page()
		p.Status = "error"
		p.Message = "Invalid confirmation link. Please check your email and try again."
		c.render(http.StatusBadRequest, templates.ConfirmEmail, p)
		return
	}

	err = c.store.VerifyEmail(r.Context(), key)
	p := c.page()
	// The confirmation outcome replaces the store's error banner.
	p.Error = ""
	var opErr *authstore.OpError
	switch {
	case err == nil:
		p.Status = "success"
		p.Message = msgConfirmed
	case errors.As(err, &opErr) && opErr.AlreadyConfirmed:
		p.Status = "already_confirmed"
		p.Message = msgAlreadyConfirmed
	case errors.As(err, &opErr):
		p.Status = "error"
		p.Message = opErr.Message
	default:
		p.Status = "error"
		p.Message = err.Error()
	}
	c.render(http.StatusOK, templates.ConfirmEmail, p)
}

// =============================================================================
// Password reset
// =============================================================================

func (a *App) handleForgotPasswordPage(w http.ResponseWriter, r *http.Request) {
	c := a.newRequestContext(w, r)
	c.render(http.StatusOK, templates.ForgotPassword, c.page())
}

func (a *App) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	c := a.newRequestContext(w, r)
	email := strings.TrimSpace(r.PostFormValue("email"))

	err := c.store.ForgotPassword(r.Context(), email)
	p := c.page()
	p.Email = email
	if err != nil {
		c.render(http.StatusUnprocessableEntity, templates.ForgotPassword, p)
		return
	}
	// Same answer whether or not the account exists.
	p.Notice = msgResetLinkSent
	c.render(http.StatusOK, templates.ForgotPassword, p)
}

func (a *App) handleResetPasswordPage(w http.ResponseWriter, r *http.Request) {
	c := a.newRequestContext(w, r)
	p := c.page()
	p.UID = chi.URLParam(r, "uid")
	p.Token = chi.URLParam(r, "token")
	c.render(http.StatusOK, templates.ResetPassword, p)
}

func (a *App) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	c := a.newRequestContext(w, r)
	uid := chi.URLParam(r, "uid")
	token := chi.URLParam(r, "token")
	password1 := r.PostFormValue("new_password1")
	password2 := r.PostFormValue("new_password2")

	var err error
	if password1 != password2 {
		err = errors.New(msgPasswordMismatch)
	} else {
		err = c.store.ResetPasswordConfirm(r.Context(), uid, token, password1, password2)
	}
	if err == nil {
		c.redirect("/login?password_reset_success=true")
		return
	}

	p := c.page()
	if p.Error == "" {
		p.Error = err.Error()
	}
	p.UID = uid
	p.Token = token
	c.render(http.StatusUnprocessableEntity, templates.ResetPassword, p)
}

// =============================================================================
// Session
// =============================================================================

func (a *App) handleLogout(w http.ResponseWriter, r *http.Request) {
	c := a.newRequestContext(w, r)
	c.store.Logout(r.Context())
	a.gate.ClearSessionCookies(w, r)
	if st := c.store.State(); st.Error != "" {
		a.flash.Warning(w, r, st.Error)
	} else {
		a.flash.Success(w, r, msgLoggedOut)
	}
	c.redirect("/")
}

func (a *App) handleProtected(w http.ResponseWriter, r *http.Request) {
	c := a.newRequestContext(w, r)

	detail, err := c.client.Protected(r.Context())
	if err != nil && auth.IsUnauthenticated(err) {
		c.logger.Info("protected detail rejected", "error", err)
		a.gate.ClearSessionCookies(w, r)
		a.redirectToLogin(w, r)
		return
	}

	p := c.page()
	if err != nil {
		c.logger.Warn("protected detail failed", "error", err)
		p.Error = auth.Classify(err).Message(msgProtectedFailed)
	}
	p.Detail = detail
	c.render(http.StatusOK, templates.Protected, p)
}

// redirectToLogin sends the browser to the login page, remembering where
// it was headed.
func (a *App) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := a.gate.Policy().LoginPath + "?" + url.Values{"redirect": {r.URL.RequestURI()}}.Encode()
	http.Redirect(w, r, target, a.gate.RedirectCode(r))
}

// safeRedirect returns target when it is a local absolute path, else "/".
func safeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return "/"
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return u.RequestURI()
}
