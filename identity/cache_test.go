package identity_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/facilitaservicos/authcore/identity"
	"github.com/facilitaservicos/authcore/identity/repofake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingRepo wraps a Repo and counts lookups.
type countingRepo struct {
	identity.Repo
	lookups atomic.Int64
}

func (c *countingRepo) FindByLoginID(ctx context.Context, loginID string) (*identity.Identity, error) {
	c.lookups.Add(1)
	return c.Repo.FindByLoginID(ctx, loginID)
}

func TestCachingRepoServesFromCache(t *testing.T) {
	fake := repofake.NewFakeCredentialRepo()
	fake.Upsert(&identity.Identity{Username: "jane", Active: true})

	counting := &countingRepo{Repo: fake}
	cached := identity.NewCachingRepo(counting, time.Minute)
	ctx := context.Background()

	first, err := cached.FindByLoginID(ctx, "jane")
	require.NoError(t, err)
	second, err := cached.FindByLoginID(ctx, "jane")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(1), counting.lookups.Load(), "second lookup must hit the cache")
}

func TestCachingRepoExpires(t *testing.T) {
	fake := repofake.NewFakeCredentialRepo()
	fake.Upsert(&identity.Identity{Username: "jane", Active: true})

	now := time.Now()
	counting := &countingRepo{Repo: fake}
	cached := identity.NewCachingRepo(counting, time.Minute,
		identity.WithCacheNowFunc(func() time.Time { return now }))
	ctx := context.Background()

	_, err := cached.FindByLoginID(ctx, "jane")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = cached.FindByLoginID(ctx, "jane")
	require.NoError(t, err)

	assert.Equal(t, int64(2), counting.lookups.Load(), "stale entries are refetched")
}

func TestCachingRepoEvictsOnMutation(t *testing.T) {
	fake := repofake.NewFakeCredentialRepo()
	ident := &identity.Identity{Username: "jane", Active: true}
	fake.Upsert(ident)

	cached := identity.NewCachingRepo(fake, time.Minute)
	ctx := context.Background()

	before, err := cached.FindByLoginID(ctx, "jane")
	require.NoError(t, err)
	assert.Equal(t, 0, before.FailedAttempts)

	_, err = cached.IncrementFailedAttempts(ctx, ident.ID, time.Now())
	require.NoError(t, err)

	after, err := cached.FindByLoginID(ctx, "jane")
	require.NoError(t, err)
	assert.Equal(t, 1, after.FailedAttempts, "mutation must evict the cached entry")
}

func TestRetryingRepoRetriesLookups(t *testing.T) {
	fake := repofake.NewFakeCredentialRepo()
	fake.Upsert(&identity.Identity{Username: "jane", Active: true})
	fake.FailLookups = true

	flaky := &recoveringRepo{Repo: fake, fake: fake, failuresLeft: 2}
	retrying := identity.NewRetryingRepo(flaky, 3, time.Millisecond)

	ident, err := retrying.FindByLoginID(context.Background(), "jane")
	require.NoError(t, err)
	assert.Equal(t, "jane", ident.Username)
}

func TestRetryingRepoDoesNotRetryNotFound(t *testing.T) {
	fake := repofake.NewFakeCredentialRepo()
	counting := &countingRepo{Repo: fake}
	retrying := identity.NewRetryingRepo(counting, 3, time.Millisecond)

	_, err := retrying.FindByLoginID(context.Background(), "missing")
	assert.ErrorIs(t, err, identity.ErrNotFound)
	assert.Equal(t, int64(1), counting.lookups.Load(), "a definitive miss is not retried")
}

func TestRetryingRepoGivesUp(t *testing.T) {
	fake := repofake.NewFakeCredentialRepo()
	fake.Upsert(&identity.Identity{Username: "jane", Active: true})
	fake.FailLookups = true

	retrying := identity.NewRetryingRepo(fake, 2, time.Millisecond)
	_, err := retrying.FindByLoginID(context.Background(), "jane")
	require.Error(t, err)
}

// recoveringRepo fails the first failuresLeft lookups, then heals the fake.
type recoveringRepo struct {
	identity.Repo
	fake         *repofake.FakeCredentialRepo
	failuresLeft int
}

func (r *recoveringRepo) FindByLoginID(ctx context.Context, loginID string) (*identity.Identity, error) {
	if r.failuresLeft > 0 {
		r.failuresLeft--
	} else {
		r.fake.FailLookups = false
	}
	return r.Repo.FindByLoginID(ctx, loginID)
}
