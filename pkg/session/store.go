package session

import (
	"context"
	"time"
)

// Store defines the interface for session persistence backends.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save persists data under id until expiresAt, overwriting any
	// previous value.
	Save(ctx context.Context, id string, data []byte, expiresAt time.Time) error

	// Load retrieves data by id.
	// Returns (nil, nil) if the entry doesn't exist or has expired.
	Load(ctx context.Context, id string) ([]byte, error)

	// Take loads and deletes an entry in one step.
	// Returns (nil, nil) if the entry doesn't exist or has expired.
	Take(ctx context.Context, id string) ([]byte, error)

	// Delete removes an entry.
	// Should not return an error if the entry doesn't exist.
	Delete(ctx context.Context, id string) error

	// Close releases any resources held by the store.
	Close() error
}

// ErrStoreClosed is returned when operations are attempted on a closed store.
type ErrStoreClosed struct{}

func (e ErrStoreClosed) Error() string {
	return "session store is closed"
}
