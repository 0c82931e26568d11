package identity

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Repo implementations when no identity matches
// the given login identifier.
var ErrNotFound = errors.New("identity not found")

// Repo resolves identity records by login identifier and applies the only
// mutations the core performs: failed-attempt accounting, success stamps,
// and password-hash replacement. Counter updates must be atomic per
// identity (single-row update or CAS); concurrent failed logins must not
// lose increments.
type Repo interface {
	FindByLoginID(ctx context.Context, loginID string) (*Identity, error)
	IncrementFailedAttempts(ctx context.Context, id string, at time.Time) (int, error)
	ResetFailedAttempts(ctx context.Context, id string) error
	RecordSuccess(ctx context.Context, id string, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id string, hash string, at time.Time) error
}
