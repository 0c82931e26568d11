package redisrepo_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/facilitaservicos/authcore/identity"
	"github.com/facilitaservicos/authcore/identity/redisrepo"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *redisrepo.Repo {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisrepo.New(client)
}

func seedIdentity(t *testing.T, repo *redisrepo.Repo) *identity.Identity {
	t.Helper()
	hash, err := identity.HashPassword("Sup3r$ecure!")
	require.NoError(t, err)

	ident := &identity.Identity{
		Username:     "jane.doe",
		Email:        "jane@example.com",
		PasswordHash: hash,
		Active:       true,
	}
	require.NoError(t, repo.Save(context.Background(), ident))
	require.NotEmpty(t, ident.ID)
	return ident
}

func TestFindByLoginID(t *testing.T) {
	repo := newTestRepo(t)
	seeded := seedIdentity(t, repo)
	ctx := context.Background()

	byUsername, err := repo.FindByLoginID(ctx, "jane.doe")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, byUsername.ID)
	assert.Equal(t, seeded.PasswordHash, byUsername.PasswordHash)

	byEmail, err := repo.FindByLoginID(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, byEmail.ID)

	// Login identifiers are matched case-insensitively.
	byUpper, err := repo.FindByLoginID(ctx, "Jane.Doe")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, byUpper.ID)

	_, err = repo.FindByLoginID(ctx, "nobody")
	assert.ErrorIs(t, err, identity.ErrNotFound)
}

func TestFailedAttemptAccounting(t *testing.T) {
	repo := newTestRepo(t)
	seeded := seedIdentity(t, repo)
	ctx := context.Background()
	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	attempts, err := repo.IncrementFailedAttempts(ctx, seeded.ID, at)
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)

	attempts, err = repo.IncrementFailedAttempts(ctx, seeded.ID, at.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	found, err := repo.FindByLoginID(ctx, "jane.doe")
	require.NoError(t, err)
	assert.Equal(t, 2, found.FailedAttempts)
	assert.Equal(t, at.Add(time.Second), found.LastFailureAt.UTC())

	require.NoError(t, repo.ResetFailedAttempts(ctx, seeded.ID))
	found, err = repo.FindByLoginID(ctx, "jane.doe")
	require.NoError(t, err)
	assert.Equal(t, 0, found.FailedAttempts)
}

func TestIncrementFailedAttemptsConcurrently(t *testing.T) {
	repo := newTestRepo(t)
	seeded := seedIdentity(t, repo)
	ctx := context.Background()
	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	const attempts = 20
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.IncrementFailedAttempts(ctx, seeded.ID, at)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	found, err := repo.FindByLoginID(ctx, "jane.doe")
	require.NoError(t, err)
	assert.Equal(t, attempts, found.FailedAttempts, "concurrent increments must not be lost")
}

func TestRecordSuccessClearsCounter(t *testing.T) {
	repo := newTestRepo(t)
	seeded := seedIdentity(t, repo)
	ctx := context.Background()
	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	_, err := repo.IncrementFailedAttempts(ctx, seeded.ID, at)
	require.NoError(t, err)

	require.NoError(t, repo.RecordSuccess(ctx, seeded.ID, at.Add(time.Minute)))

	found, err := repo.FindByLoginID(ctx, "jane.doe")
	require.NoError(t, err)
	assert.Equal(t, 0, found.FailedAttempts)
	assert.Equal(t, at.Add(time.Minute), found.LastSuccessAt.UTC())
}

func TestUpdatePasswordHash(t *testing.T) {
	repo := newTestRepo(t)
	seeded := seedIdentity(t, repo)
	ctx := context.Background()
	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	newHash, err := identity.HashPassword("N3w$ecret!!")
	require.NoError(t, err)
	require.NoError(t, repo.UpdatePasswordHash(ctx, seeded.ID, newHash, at))

	found, err := repo.FindByLoginID(ctx, "jane.doe")
	require.NoError(t, err)
	assert.Equal(t, newHash, found.PasswordHash)
	assert.Equal(t, at, found.LastPasswordChange.UTC())
}

func TestMutationsOnUnknownIdentity(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.IncrementFailedAttempts(ctx, "missing", time.Now())
	assert.ErrorIs(t, err, identity.ErrNotFound)

	err = repo.RecordSuccess(ctx, "missing", time.Now())
	assert.ErrorIs(t, err, identity.ErrNotFound)
}
