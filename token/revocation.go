package token

import (
	"context"
	"sync"
	"time"

	"github.com/facilitaservicos/authcore/otp"
	"github.com/pkg/errors"
)

// RevokedTokenCache is the denylist of revoked token IDs. Entries only need
// to outlive the token's own expiry; after that natural expiry makes the
// denylist entry redundant.
type RevokedTokenCache interface {
	Add(ctx context.Context, jti string, exp time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// InMemoryRevokedTokenCache is a process-local denylist.
type InMemoryRevokedTokenCache struct {
	revoked map[string]time.Time
	mu      sync.RWMutex
	nowFunc func() time.Time
}

func NewInMemoryRevokedTokenCache() *InMemoryRevokedTokenCache {
	return &InMemoryRevokedTokenCache{
		revoked: make(map[string]time.Time),
		nowFunc: time.Now,
	}
}

func (c *InMemoryRevokedTokenCache) Add(ctx context.Context, jti string, exp time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[jti] = exp
	return nil
}

func (c *InMemoryRevokedTokenCache) IsRevoked(ctx context.Context, jti string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.revoked[jti]
	return exists, nil
}

// Cleanup removes entries whose token has expired anyway.
func (c *InMemoryRevokedTokenCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.nowFunc()
	for jti, exp := range c.revoked {
		if now.After(exp) {
			delete(c.revoked, jti)
		}
	}
}

var _ RevokedTokenCache = (*InMemoryRevokedTokenCache)(nil)

const revokedKeyPrefix = "token:revoked:"

// StoreRevokedTokenCache is a denylist on the shared ephemeral store, so
// revocations are visible across instances. Entries carry a TTL matching
// the token's remaining lifetime and are garbage-collected by the store.
type StoreRevokedTokenCache struct {
	store   otp.Store
	nowFunc func() time.Time
}

// StoreRevokedTokenCacheOption configures a StoreRevokedTokenCache.
type StoreRevokedTokenCacheOption func(*StoreRevokedTokenCache)

// WithRevocationNowFunc sets the clock used to compute entry TTLs.
func WithRevocationNowFunc(now func() time.Time) StoreRevokedTokenCacheOption {
	return func(c *StoreRevokedTokenCache) {
		c.nowFunc = now
	}
}

func NewStoreRevokedTokenCache(store otp.Store, options ...StoreRevokedTokenCacheOption) *StoreRevokedTokenCache {
	c := &StoreRevokedTokenCache{store: store, nowFunc: time.Now}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *StoreRevokedTokenCache) Add(ctx context.Context, jti string, exp time.Time) error {
	ttl := exp.Sub(c.nowFunc())
	if ttl <= 0 {
		return nil // already expired, nothing to deny
	}
	if err := c.store.SetWithTTL(ctx, revokedKeyPrefix+jti, "1", ttl); err != nil {
		return errors.Wrap(err, "token.StoreRevokedTokenCache.Add")
	}
	return nil
}

func (c *StoreRevokedTokenCache) IsRevoked(ctx context.Context, jti string) (bool, error) {
	_, ok, err := c.store.Get(ctx, revokedKeyPrefix+jti)
	if err != nil {
		return false, errors.Wrap(err, "token.StoreRevokedTokenCache.IsRevoked")
	}
	return ok, nil
}

var _ RevokedTokenCache = (*StoreRevokedTokenCache)(nil)
