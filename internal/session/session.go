// Package session provides server-side login sessions keyed by an
// opaque id carried in an HttpOnly cookie.
package session

import (
	"context"
	"errors"
	"time"
)

// TTL is how long a session stays valid after sign-in.
const TTL = 24 * time.Hour

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// Store defines session persistence. Tests inject the in-memory
// implementation; production wires Redis. Same contract either way.
type Store interface {
	Create(ctx context.Context, userID int64) (string, error)
	Get(ctx context.Context, id string) (int64, error)
	Delete(ctx context.Context, id string) error
}
