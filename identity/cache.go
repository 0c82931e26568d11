package identity

import (
	"context"
	"sync"
	"time"
)

// CachingRepo is a read-through cache in front of a Repo. Lookups are
// cached per login identifier for a fixed TTL; any mutation for an
// identity evicts its cached entries. The cache only ever serves the
// FindByLoginID path, writes always hit the underlying repo.
type CachingRepo struct {
	repo    Repo
	ttl     time.Duration
	nowFunc func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry          // loginID -> entry
	byID    map[string]map[string]struct{} // identity ID -> loginIDs to evict
}

type cacheEntry struct {
	identity *Identity
	storedAt time.Time
}

// CachingRepoOption configures a CachingRepo.
type CachingRepoOption func(*CachingRepo)

// WithCacheNowFunc sets the clock used for TTL checks (primarily for testing).
func WithCacheNowFunc(now func() time.Time) CachingRepoOption {
	return func(c *CachingRepo) {
		c.nowFunc = now
	}
}

// NewCachingRepo wraps repo with a lookup cache holding entries for ttl.
func NewCachingRepo(repo Repo, ttl time.Duration, options ...CachingRepoOption) *CachingRepo {
	c := &CachingRepo{
		repo:    repo,
		ttl:     ttl,
		nowFunc: time.Now,
		entries: make(map[string]cacheEntry),
		byID:    make(map[string]map[string]struct{}),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *CachingRepo) FindByLoginID(ctx context.Context, loginID string) (*Identity, error) {
	c.mu.RLock()
	entry, ok := c.entries[loginID]
	c.mu.RUnlock()

	if ok && c.nowFunc().Sub(entry.storedAt) < c.ttl {
		cached := *entry.identity
		return &cached, nil
	}

	ident, err := c.repo.FindByLoginID(ctx, loginID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	stored := *ident
	c.entries[loginID] = cacheEntry{identity: &stored, storedAt: c.nowFunc()}
	if c.byID[ident.ID] == nil {
		c.byID[ident.ID] = make(map[string]struct{})
	}
	c.byID[ident.ID][loginID] = struct{}{}
	c.mu.Unlock()

	copied := *ident
	return &copied, nil
}

func (c *CachingRepo) IncrementFailedAttempts(ctx context.Context, id string, at time.Time) (int, error) {
	c.evict(id)
	return c.repo.IncrementFailedAttempts(ctx, id, at)
}

func (c *CachingRepo) ResetFailedAttempts(ctx context.Context, id string) error {
	c.evict(id)
	return c.repo.ResetFailedAttempts(ctx, id)
}

func (c *CachingRepo) RecordSuccess(ctx context.Context, id string, at time.Time) error {
	c.evict(id)
	return c.repo.RecordSuccess(ctx, id, at)
}

func (c *CachingRepo) UpdatePasswordHash(ctx context.Context, id string, hash string, at time.Time) error {
	c.evict(id)
	return c.repo.UpdatePasswordHash(ctx, id, hash, at)
}

func (c *CachingRepo) evict(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for loginID := range c.byID[id] {
		delete(c.entries, loginID)
	}
	delete(c.byID, id)
}

var _ Repo = (*CachingRepo)(nil)
