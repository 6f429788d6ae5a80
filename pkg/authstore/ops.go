package authstore

import (
	"context"
	"net/http"
	"strings"

	"github.com/vango-dev/authfront/pkg/auth"
)

// Default messages, used when the backend failure has nothing readable.
const (
	msgFetchUser      = "Failed to fetch user."
	msgLogin          = "Login failed."
	msgSignup         = "Signup failed."
	msgLogout         = "Logout failed."
	msgResend         = "Failed to resend verification email."
	msgForgotPassword = "Failed to send password reset email."
	msgResetConfirm   = "Password reset failed. The link may be invalid or expired."
	msgVerifyEmail    = "Email verification failed."
	msgInvalidKey     = "Invalid or expired confirmation link."
)

// SignupResult describes what the caller should do after a registration.
type SignupResult struct {
	Success              bool
	RequiresVerification bool
	Email                string
}

// FetchUser refreshes the current user. A 401 or 403 just means there is
// no session and leaves Error empty; any other failure is recorded.
func (s *Store) FetchUser(ctx context.Context) *auth.User {
	s.begin()

	user, err := s.api.User(ctx)
	if err != nil {
		msg := ""
		if !auth.IsUnauthenticated(err) {
			msg = auth.Classify(err).Message(msgFetchUser)
			s.logger.Warn("fetch user failed", "error", err)
		}
		s.update(func(st *State) {
			st.User = nil
			st.Error = msg
			st.IsLoading = false
		})
		return nil
	}

	s.update(func(st *State) {
		st.User = user
		st.Error = ""
		st.IsLoading = false
	})
	return user
}

// Login signs in and then refreshes the user.
func (s *Store) Login(ctx context.Context, email, password string) error {
	s.begin()

	if err := s.api.Login(ctx, email, password); err != nil {
		ae := auth.Classify(err)
		msg := ae.Message(msgLogin)
		s.update(func(st *State) {
			st.User = nil
			st.Error = msg
			st.IsLoading = false
		})
		if ae.MentionsUnverifiedEmail() {
			return &EmailVerificationError{Email: email, Message: msg, Cause: ae.AsEmailUnverified(email)}
		}
		return &OpError{Op: ErrLoginFailed, Message: msg, Cause: ae}
	}

	s.FetchUser(ctx)
	return nil
}

// Signup registers an account. The verification requirement comes from
// the store's flags, never from the backend's wording.
func (s *Store) Signup(ctx context.Context, email, password1, password2 string) (SignupResult, error) {
	s.begin()

	if err := s.api.Register(ctx, email, password1, password2); err != nil {
		ae := auth.Classify(err)
		msg := ae.Message(msgSignup)
		s.update(func(st *State) {
			st.Error = msg
			st.IsLoading = false
		})
		return SignupResult{}, &OpError{Op: ErrSignupFailed, Message: msg, Cause: ae}
	}

	result := SignupResult{Success: true, Email: email}
	switch {
	case s.flags.EmailVerificationRequired:
		result.RequiresVerification = true
	case s.flags.LoginOnRegistration:
		// No user after an auto-login registration most likely means the
		// backend is holding the account for confirmation.
		result.RequiresVerification = s.FetchUser(ctx) == nil
	}

	s.update(func(st *State) {
		st.IsLoading = false
	})
	return result, nil
}

// Logout ends the session. The local user is cleared whatever the backend
// says; a failure is recorded but not returned.
func (s *Store) Logout(ctx context.Context) {
	s.begin()

	err := s.api.Logout(ctx)
	msg := ""
	if err != nil {
		msg = auth.Classify(err).Message(msgLogout)
		s.logger.Warn("logout failed", "error", err)
	}
	s.update(func(st *State) {
		st.User = nil
		st.Error = msg
		st.IsLoading = false
	})
}

// ResendVerificationEmail asks the backend to send a new confirmation link.
func (s *Store) ResendVerificationEmail(ctx context.Context, email string) error {
	s.begin()
	return s.finish(ErrResendFailed, msgResend, s.api.ResendVerification(ctx, email))
}

// ForgotPassword requests a reset mail. Success says nothing about whether
// the account exists.
func (s *Store) ForgotPassword(ctx context.Context, email string) error {
	s.begin()
	return s.finish(ErrForgotPasswordFailed, msgForgotPassword, s.api.RequestPasswordReset(ctx, email))
}

// ResetPasswordConfirm sets a new password from a reset link.
func (s *Store) ResetPasswordConfirm(ctx context.Context, uid, token, password1, password2 string) error {
	s.begin()
	return s.finish(ErrResetConfirmFailed, msgResetConfirm, s.api.ConfirmPasswordReset(ctx, uid, token, password1, password2))
}

// VerifyEmail confirms an address and refreshes the user, since the
// backend may sign the user in on confirmation.
func (s *Store) VerifyEmail(ctx context.Context, key string) error {
	s.begin()

	if err := s.api.VerifyEmail(ctx, key); err != nil {
		ae := auth.Classify(err)
		msg := ae.Message(msgVerifyEmail)
		if ae.Status == http.StatusNotFound {
			msg = msgInvalidKey
		}
		opErr := &OpError{
			Op:               ErrVerifyEmailFailed,
			Message:          msg,
			AlreadyConfirmed: strings.Contains(strings.ToLower(ae.Detail), "already confirmed"),
			Cause:            ae,
		}
		s.update(func(st *State) {
			st.Error = msg
			st.IsLoading = false
		})
		return opErr
	}

	s.FetchUser(ctx)
	return nil
}

func (s *Store) finish(op error, def string, err error) error {
	if err == nil {
		s.update(func(st *State) {
			st.IsLoading = false
		})
		return nil
	}

	ae := auth.Classify(err)
	msg := ae.Message(def)
	s.update(func(st *State) {
		st.Error = msg
		st.IsLoading = false
	})
	return &OpError{Op: op, Message: msg, Cause: ae}
}
