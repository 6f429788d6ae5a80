package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/vango-dev/authfront/pkg/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email     string `json:"email"`
	Password1 string `json:"password1"`
	Password2 string `json:"password2"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type keyRequest struct {
	Key string `json:"key"`
}

type resetConfirmRequest struct {
	UID          string `json:"uid"`
	Token        string `json:"token"`
	NewPassword1 string `json:"new_password1"`
	NewPassword2 string `json:"new_password2"`
}

// CurrentUser validates a session cookie against the current-user
// endpoint. Anything but 200 is reported as *auth.TokenInvalidError;
// transport failures as *auth.NetworkError.
func (c *Client) CurrentUser(ctx context.Context, session *http.Cookie) (*auth.User, json.RawMessage, error) {
	var cookies []*http.Cookie
	if session != nil {
		cookies = append(cookies, &http.Cookie{Name: session.Name, Value: session.Value})
	}

	status, body, err := c.call(ctx, "current-user", http.MethodGet, c.endpoints.CurrentUser, nil, cookies...)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, nil, &auth.TokenInvalidError{Status: apiErr.Status}
		}
		return nil, nil, err
	}
	if status != http.StatusOK {
		return nil, nil, &auth.TokenInvalidError{Status: status}
	}
	return decodeUser(body)
}

// User fetches the current user using whatever cookies the client carries.
func (c *Client) User(ctx context.Context) (*auth.User, error) {
	_, body, err := c.call(ctx, "current-user", http.MethodGet, c.endpoints.CurrentUser, nil)
	if err != nil {
		return nil, err
	}
	user, _, err := decodeUser(body)
	return user, err
}

// Login posts credentials. The backend answers with a session cookie.
func (c *Client) Login(ctx context.Context, email, password string) error {
	_, _, err := c.call(ctx, "login", http.MethodPost, c.endpoints.Login, loginRequest{Email: email, Password: password})
	return err
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, email, password1, password2 string) error {
	_, _, err := c.call(ctx, "registration", http.MethodPost, c.endpoints.Registration, registerRequest{
		Email:     email,
		Password1: password1,
		Password2: password2,
	})
	return err
}

// ResendVerification asks the backend to mail a new confirmation link.
func (c *Client) ResendVerification(ctx context.Context, email string) error {
	_, _, err := c.call(ctx, "resend-email", http.MethodPost, c.endpoints.ResendEmail, emailRequest{Email: email})
	return err
}

// VerifyEmail confirms an address with the key from the confirmation link.
func (c *Client) VerifyEmail(ctx context.Context, key string) error {
	_, _, err := c.call(ctx, "verify-email", http.MethodPost, c.endpoints.VerifyEmail, keyRequest{Key: key})
	return err
}

// Logout ends the backend session. The backend clears the cookie.
func (c *Client) Logout(ctx context.Context) error {
	_, _, err := c.call(ctx, "logout", http.MethodPost, c.endpoints.Logout, nil)
	return err
}

// RequestPasswordReset asks for a reset mail. The backend answers the same
// way whether or not the account exists.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	_, _, err := c.call(ctx, "password-reset", http.MethodPost, c.endpoints.PasswordReset, emailRequest{Email: email})
	return err
}

// ConfirmPasswordReset sets a new password using the uid and token from
// the reset link.
func (c *Client) ConfirmPasswordReset(ctx context.Context, uid, token, password1, password2 string) error {
	_, _, err := c.call(ctx, "password-reset-confirm", http.MethodPost, c.endpoints.PasswordResetConfirm, resetConfirmRequest{
		UID:          uid,
		Token:        token,
		NewPassword1: password1,
		NewPassword2: password2,
	})
	return err
}

// Protected fetches the backend's protected resource.
func (c *Client) Protected(ctx context.Context) (*auth.ProtectedDetail, error) {
	_, body, err := c.call(ctx, "protected", http.MethodGet, c.endpoints.Protected, nil)
	if err != nil {
		return nil, err
	}
	var detail auth.ProtectedDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, fmt.Errorf("backend: decode protected detail: %w", err)
	}
	return &detail, nil
}

func decodeUser(body []byte) (*auth.User, json.RawMessage, error) {
	var user auth.User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, nil, fmt.Errorf("backend: decode user: %w", err)
	}
	if user.ID == "" && user.Email == "" {
		return nil, nil, ErrEmptyUser
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, body); err != nil {
		return nil, nil, fmt.Errorf("backend: compact user: %w", err)
	}
	return &user, json.RawMessage(compact.Bytes()), nil
}
