package backend

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrEmptyUser is returned when the current-user endpoint answers 200
// without an id or an email.
var ErrEmptyUser = errors.New("backend: user payload has no identity")

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Endpoint string
	Status   int
	Body     []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed with status code %d", e.Status)
}

// StatusCode returns the HTTP status.
func (e *APIError) StatusCode() int { return e.Status }

// Payload returns the body when it is a JSON object, nil otherwise.
func (e *APIError) Payload() []byte {
	trimmed := bytes.TrimSpace(e.Body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	return trimmed
}
