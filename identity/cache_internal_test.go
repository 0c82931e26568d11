package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticRepo serves a fixed identity for every lookup.
type staticRepo struct {
	ident Identity
}

func (s *staticRepo) FindByLoginID(ctx context.Context, loginID string) (*Identity, error) {
	copied := s.ident
	return &copied, nil
}

func (s *staticRepo) IncrementFailedAttempts(ctx context.Context, id string, at time.Time) (int, error) {
	return 0, nil
}

func (s *staticRepo) ResetFailedAttempts(ctx context.Context, id string) error { return nil }

func (s *staticRepo) RecordSuccess(ctx context.Context, id string, at time.Time) error { return nil }

func (s *staticRepo) UpdatePasswordHash(ctx context.Context, id string, hash string, at time.Time) error {
	return nil
}

func TestCachingRepoEvictionIndexStaysBounded(t *testing.T) {
	repo := &staticRepo{ident: Identity{ID: "id-1", Username: "jane", Active: true}}

	now := time.Now()
	cached := NewCachingRepo(repo, time.Minute,
		WithCacheNowFunc(func() time.Time { return now }))
	ctx := context.Background()

	// Repeated refetches of the same login must not grow the eviction index.
	for i := 0; i < 5; i++ {
		_, err := cached.FindByLoginID(ctx, "jane")
		require.NoError(t, err)
		now = now.Add(2 * time.Minute)
	}

	cached.mu.RLock()
	defer cached.mu.RUnlock()
	assert.Len(t, cached.byID["id-1"], 1)
}
