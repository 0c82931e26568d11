package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Channel is the delivery channel a one-time code is issued for.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

const (
	codeKeyPrefix  = "2fa:code:"
	codeDigits     = 6
	defaultCodeTTL = 5 * time.Minute
)

var codeSpace = big.NewInt(1_000_000) // codes are uniform over 000000..999999

// Issuance is returned to the caller of Issue. It carries the masked code
// and TTL only; the raw code never leaves the manager except through the
// delivery side (store + out-of-band send).
type Issuance struct {
	MaskedCode string  `json:"masked_code"`
	TTLSeconds int     `json:"ttl_seconds"`
	Channel    Channel `json:"channel"`
}

// Manager issues, verifies, and disables single-use 2FA codes backed by an
// ephemeral Store. Per-owner state machine: ABSENT -> ISSUED -> consumed or
// expired; a fresh Issue always overwrites any outstanding code.
type Manager struct {
	store  Store
	ttl    time.Duration
	logger zerolog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTTL overrides the code lifetime (default 5 minutes).
func WithTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithLogger sets the structured logger (defaults to a no-op logger).
func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a one-time code manager on top of store.
func NewManager(store Store, options ...ManagerOption) *Manager {
	m := &Manager{
		store:  store,
		ttl:    defaultCodeTTL,
		logger: zerolog.Nop(),
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Issue generates a cryptographically random zero-padded 6-digit code,
// stores it under the owner's key with the configured TTL, and returns the
// masked representation. Any previously outstanding code for the owner is
// overwritten. A storage failure surfaces as a failed issuance.
func (m *Manager) Issue(ctx context.Context, owner string, channel Channel) (*Issuance, error) {
	code, err := generateCode()
	if err != nil {
		return nil, errors.Wrap(err, "otp.Manager.Issue generate")
	}

	if err := m.store.SetWithTTL(ctx, codeKey(owner), code, m.ttl); err != nil {
		m.logger.Error().Err(err).Str("owner", owner).Str("channel", string(channel)).
			Msg("one-time code issuance failed")
		return nil, errors.Wrap(err, "otp.Manager.Issue store")
	}

	m.logger.Info().Str("owner", owner).Str("channel", string(channel)).
		Msg("one-time code issued")

	return &Issuance{
		MaskedCode: maskCode(code),
		TTLSeconds: int(m.ttl.Seconds()),
		Channel:    channel,
	}, nil
}

// Verify checks the submitted code against the stored one. A match consumes
// the code (single use); a mismatch leaves it intact so the owner may retry
// until TTL expiry. Absent codes and storage failures both report false:
// verification fails closed, never open.
//
// A re-issue racing with a verify can have its fresh code consumed and
// discarded by the losing verifier. The verify still reports false and no
// code is ever accepted twice; the owner simply requests another code.
func (m *Manager) Verify(ctx context.Context, owner, submitted string) bool {
	key := codeKey(owner)

	stored, ok, err := m.store.Get(ctx, key)
	if err != nil {
		m.logger.Error().Err(err).Str("owner", owner).Msg("one-time code lookup failed")
		return false
	}
	if !ok {
		m.logger.Warn().Str("owner", owner).Msg("one-time code absent or expired")
		return false
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(submitted)) != 1 {
		m.logger.Warn().Str("owner", owner).Msg("one-time code mismatch")
		return false
	}

	// Consume atomically. Under a racing verify or re-issue only one caller
	// gets the stored value back, and it must still be the code we matched.
	consumed, ok, err := m.store.GetAndDelete(ctx, key)
	if err != nil {
		m.logger.Error().Err(err).Str("owner", owner).Msg("one-time code consume failed")
		return false
	}
	if !ok || subtle.ConstantTimeCompare([]byte(consumed), []byte(submitted)) != 1 {
		return false
	}

	m.logger.Info().Str("owner", owner).Msg("one-time code verified")
	return true
}

// Disable removes any outstanding code for the owner. Idempotent: disabling
// an owner with no code is a no-op.
func (m *Manager) Disable(ctx context.Context, owner string) error {
	if err := m.store.Delete(ctx, codeKey(owner)); err != nil {
		return errors.Wrap(err, "otp.Manager.Disable")
	}
	m.logger.Info().Str("owner", owner).Msg("one-time code disabled")
	return nil
}

func codeKey(owner string) string {
	return codeKeyPrefix + owner
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func maskCode(code string) string {
	if len(code) < codeDigits {
		return "****"
	}
	return code[:2] + "****"
}
