package redisstore

import (
	"context"
	"time"

	"github.com/facilitaservicos/authcore/otp"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var _ otp.Store = (*Store)(nil)

// Store is the Redis-backed ephemeral store. TTL handling and the atomic
// get-and-delete (GETDEL) are delegated to Redis; expired keys are
// garbage-collected by the server itself.
type Store struct {
	client *redis.Client
}

// New creates a store on top of an existing Redis client.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return errors.Wrapf(otp.ErrStoreUnavailable, "redis set: %v", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(otp.ErrStoreUnavailable, "redis get: %v", err)
	}
	return value, true, nil
}

func (s *Store) GetAndDelete(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.GetDel(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(otp.ErrStoreUnavailable, "redis getdel: %v", err)
	}
	return value, true, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return errors.Wrapf(otp.ErrStoreUnavailable, "redis del: %v", err)
	}
	return nil
}
