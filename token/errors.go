package token

import "errors"

var (
	// ErrInvalidCredentials covers both unknown login identifiers and
	// password mismatches. The two are never distinguished, so callers
	// cannot enumerate identities.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountLocked is reported when too many recent failures put the
	// identity inside the lockout window. Deliberately distinct from
	// ErrInvalidCredentials.
	ErrAccountLocked = errors.New("account locked")

	// ErrSecondFactorRequired is returned when the identity requires a
	// one-time code and none was supplied.
	ErrSecondFactorRequired = errors.New("second factor required")

	// ErrInvalidOrExpiredToken covers malformed, expired, wrong-key-signed,
	// and revoked refresh tokens, reported uniformly.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

	// ErrBackendUnavailable signals a repository, store, or key failure.
	// Authentication and refresh fail closed on it.
	ErrBackendUnavailable = errors.New("backend unavailable")
)
