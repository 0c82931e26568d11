package token

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const signingKeyLength = 32 // 256 bits

// KeyMaterial is a single symmetric signing key. RetiredAt is zero for the
// active key and records the rotation instant for a previous key.
type KeyMaterial struct {
	KeyID     string
	Secret    []byte
	RetiredAt time.Time
}

// SecretStore supplies signing key material. The core only consumes the
// active key, optionally the previous one during a rotation grace period,
// and triggers rotations.
type SecretStore interface {
	ActiveSigningKey() (KeyMaterial, error)
	PreviousSigningKey() (KeyMaterial, bool)
	Rotate() error
}

// KeyRing is an in-memory SecretStore holding the active key and at most
// one rotated-out predecessor. Rotation generates fresh random material;
// the displaced key stays readable so not-yet-expired tokens signed before
// the rotation can still be verified.
type KeyRing struct {
	mu       sync.RWMutex
	active   KeyMaterial
	previous *KeyMaterial
	nowFunc  func() time.Time
}

// KeyRingOption configures a KeyRing.
type KeyRingOption func(*KeyRing)

// WithKeyRingNowFunc sets the clock used to stamp rotations (for testing).
func WithKeyRingNowFunc(now func() time.Time) KeyRingOption {
	return func(r *KeyRing) {
		r.nowFunc = now
	}
}

// NewKeyRing creates a key ring with freshly generated active material.
func NewKeyRing(options ...KeyRingOption) (*KeyRing, error) {
	r := &KeyRing{nowFunc: time.Now}
	for _, opt := range options {
		opt(r)
	}

	key, err := generateKeyMaterial()
	if err != nil {
		return nil, errors.Wrap(err, "token.NewKeyRing")
	}
	r.active = key
	return r, nil
}

// NewKeyRingFromSecret creates a key ring seeded with externally supplied
// material, e.g. a secret loaded from a vault at startup.
func NewKeyRingFromSecret(keyID string, secret []byte, options ...KeyRingOption) *KeyRing {
	r := &KeyRing{
		active:  KeyMaterial{KeyID: keyID, Secret: secret},
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *KeyRing) ActiveSigningKey() (KeyMaterial, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active, nil
}

func (r *KeyRing) PreviousSigningKey() (KeyMaterial, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.previous == nil {
		return KeyMaterial{}, false
	}
	return *r.previous, true
}

// Rotate replaces the active key with fresh material. The outgoing key
// becomes the previous key, stamped with the rotation time; any older
// previous key is discarded.
func (r *KeyRing) Rotate() error {
	key, err := generateKeyMaterial()
	if err != nil {
		return errors.Wrap(err, "token.KeyRing.Rotate")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	retired := r.active
	retired.RetiredAt = r.nowFunc()
	r.previous = &retired
	r.active = key
	return nil
}

var _ SecretStore = (*KeyRing)(nil)

func generateKeyMaterial() (KeyMaterial, error) {
	secret := make([]byte, signingKeyLength)
	if _, err := rand.Read(secret); err != nil {
		return KeyMaterial{}, errors.Wrap(err, "generate signing key")
	}
	return KeyMaterial{KeyID: uuid.New().String(), Secret: secret}, nil
}
