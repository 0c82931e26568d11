package otp

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable is returned by Store implementations when the backend
// cannot be reached. The manager fails closed on it.
var ErrStoreUnavailable = errors.New("ephemeral store unavailable")

// Store is a key-value store with per-key TTL and an atomic get-and-delete
// primitive. One-time codes rely on GetAndDelete for their at-most-one-use
// guarantee; no external lock is held around store calls.
type Store interface {
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	GetAndDelete(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
}
