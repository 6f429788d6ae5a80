package authstore

import (
	"errors"

	"github.com/vango-dev/authfront/pkg/auth"
)

// Operation failures. Every error returned by a Store operation matches
// exactly one of these with errors.Is, except EmailVerificationError.
var (
	ErrLoginFailed          = errors.New("login failed")
	ErrSignupFailed         = errors.New("signup failed")
	ErrResendFailed         = errors.New("resend verification failed")
	ErrForgotPasswordFailed = errors.New("forgot password failed")
	ErrResetConfirmFailed   = errors.New("password reset confirm failed")
	ErrVerifyEmailFailed    = errors.New("email verification failed")
)

// OpError is a failed store operation. Message is what the store also
// recorded in State.Error.
type OpError struct {
	Op      error
	Message string

	// AlreadyConfirmed is set by VerifyEmail when the address was
	// confirmed earlier.
	AlreadyConfirmed bool

	Cause *auth.AuthError
}

func (e *OpError) Error() string { return e.Message }

func (e *OpError) Is(target error) bool { return target == e.Op }

func (e *OpError) Unwrap() error {
	if e.Cause == nil {
		return nil
	}
	return e.Cause
}

// EmailVerificationError is returned by Login when the backend refused the
// credentials because the address is not confirmed yet. Email is the
// address the user tried, so the caller can offer to resend the link.
type EmailVerificationError struct {
	Email   string
	Message string
	Cause   *auth.AuthError
}

func (e *EmailVerificationError) Error() string { return e.Message }

func (e *EmailVerificationError) Unwrap() error {
	if e.Cause == nil {
		return nil
	}
	return e.Cause
}
