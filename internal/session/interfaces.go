// Package session provides the Persistent Session Store: the durable
// key/value storage that holds the session token, the cached user record and
// the theme preference between runs.
package session

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested key does not exist.
var ErrNotFound = errors.New("not found")

// Keys of the persisted client state. Nothing else is stored.
const (
	KeyToken = "token"
	KeyUser  = "user"
	KeyTheme = "theme"
)

// Store provides key/value persistence.
// Implementations must be safe for concurrent use: the HTTP client reads the
// token on every request while the session manager writes it on login and
// logout.
type Store interface {
	// Get returns the value stored under key.
	// Returns ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
