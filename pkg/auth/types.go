package auth

import (
	"encoding/json"
	"strings"
	"time"
)

// User is the account record returned by the backend's current-user
// endpoint. The client never mutates it.
type User struct {
	ID              ID         `json:"id"`
	Email           string     `json:"email"`
	FirstName       string     `json:"first_name,omitempty"`
	LastName        string     `json:"last_name,omitempty"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
}

// DisplayName returns the user's full name, falling back to the email.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// Verified reports whether the backend has recorded an email confirmation.
func (u *User) Verified() bool {
	return u != nil && u.EmailVerifiedAt != nil
}

// Verdict is the outcome of validating a request's session cookie.
type Verdict struct {
	Authenticated bool

	// User is the decoded current-user payload. Nil unless Authenticated.
	User *User

	// RawUser is the payload as the backend sent it, compacted.
	RawUser json.RawMessage
}

// ProtectedDetail is the payload of the backend's protected endpoint.
type ProtectedDetail struct {
	Message       string    `json:"message"`
	User          *User     `json:"user"`
	Authenticated bool      `json:"authenticated"`
	Timestamp     time.Time `json:"timestamp"`
}

// ID is an opaque account identifier. Numeric keys are accepted and kept
// in their decimal form.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}
