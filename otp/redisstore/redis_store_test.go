package redisstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/facilitaservicos/authcore/otp"
	"github.com/facilitaservicos/authcore/otp/redisstore"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*redisstore.Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return redisstore.New(client), mr
}

func TestSetGetDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetWithTTL(ctx, "k", "v", time.Minute))

	value, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", value)

	require.NoError(t, store.Delete(ctx, "k"))

	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetAndDeleteIsSingleShot(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetWithTTL(ctx, "k", "v", time.Minute))

	value, ok, err := store.GetAndDelete(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", value)

	_, ok, err = store.GetAndDelete(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "second consume must miss")
}

func TestTTLExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetWithTTL(ctx, "k", "v", 5*time.Minute))

	mr.FastForward(5*time.Minute + time.Second)

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "key must expire with its TTL")
}

func TestUnavailableBackend(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	mr.Close()

	err := store.SetWithTTL(ctx, "k", "v", time.Minute)
	assert.ErrorIs(t, err, otp.ErrStoreUnavailable)

	_, _, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, otp.ErrStoreUnavailable)

	_, _, err = store.GetAndDelete(ctx, "k")
	assert.ErrorIs(t, err, otp.ErrStoreUnavailable)

	assert.ErrorIs(t, store.Delete(ctx, "k"), otp.ErrStoreUnavailable)
}
