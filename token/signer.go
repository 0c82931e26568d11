package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Signer signs JWT claims and resolves verification keys for parsed tokens.
type Signer interface {
	Sign(claims jwt.MapClaims) (string, error)
	GetVerificationKey(token *jwt.Token) (any, error)
}

// KeyRingSigner implements Signer using symmetric HMAC-SHA256 keyed by a
// SecretStore. Tokens are signed with the active key and carry its key ID
// in the header; verification accepts the active key, or the previous key
// while the rotation grace period has not elapsed.
type KeyRingSigner struct {
	ring    SecretStore
	grace   time.Duration
	nowFunc func() time.Time
}

// KeyRingSignerOption configures a KeyRingSigner.
type KeyRingSignerOption func(*KeyRingSigner)

// WithSignerNowFunc sets the clock used for grace-period checks (for testing).
func WithSignerNowFunc(now func() time.Time) KeyRingSignerOption {
	return func(s *KeyRingSigner) {
		s.nowFunc = now
	}
}

// NewKeyRingSigner creates a signer on top of ring. Tokens signed by a
// rotated-out key remain verifiable for grace after the rotation.
func NewKeyRingSigner(ring SecretStore, grace time.Duration, options ...KeyRingSignerOption) *KeyRingSigner {
	s := &KeyRingSigner{
		ring:    ring,
		grace:   grace,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *KeyRingSigner) Sign(claims jwt.MapClaims) (string, error) {
	key, err := s.ring.ActiveSigningKey()
	if err != nil {
		return "", errors.Wrap(err, "token.KeyRingSigner.Sign active key")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = key.KeyID

	signedToken, err := token.SignedString(key.Secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token with HMAC")
	}
	return signedToken, nil
}

func (s *KeyRingSigner) GetVerificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
	}

	kid, _ := token.Header["kid"].(string)

	active, err := s.ring.ActiveSigningKey()
	if err != nil {
		return nil, errors.Wrap(err, "token.KeyRingSigner verification key")
	}
	if kid == active.KeyID {
		return active.Secret, nil
	}

	if previous, ok := s.ring.PreviousSigningKey(); ok && kid == previous.KeyID {
		if s.nowFunc().Sub(previous.RetiredAt) <= s.grace {
			return previous.Secret, nil
		}
		return nil, errors.New("signing key rotated out beyond grace period")
	}

	return nil, errors.Errorf("unknown signing key id %q", kid)
}

var _ Signer = (*KeyRingSigner)(nil)
