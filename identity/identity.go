package identity

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Identity is the authenticated principal record: login identifiers,
// credential hash, and lockout state. It is owned by the credential
// repository; the core mutates counters and timestamps but never deletes
// a record (deactivation only).
type Identity struct {
	ID                 string    `json:"id,omitempty"`            // Unique identifier for the identity
	Username           string    `json:"username,omitempty"`      // Unique username
	Email              string    `json:"email,omitempty"`         // Identity's email address
	PasswordHash       string    `json:"-"`                       // Hashed version of the password - never serialize
	Active             bool      `json:"active,omitempty"`        // Deactivated identities cannot authenticate
	TwoFactorEnabled   bool      `json:"two_factor,omitempty"`    // Requires a verified one-time code on login
	FailedAttempts     int       `json:"-"`                       // Consecutive failed logins, reset on success
	LastFailureAt      time.Time `json:"-"`                       // Time of the most recent failed login
	LastSuccessAt      time.Time `json:"last_login,omitempty"`    // Last successful authentication
	LastPasswordChange time.Time `json:"password_changed_at,omitempty"` // Drives password expiry checks
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
