package storefake

import (
	"context"
	"sync"
	"time"

	"github.com/facilitaservicos/authcore/otp"
)

var _ otp.Store = (*FakeStore)(nil)

type entry struct {
	value     string
	expiresAt time.Time
}

// FakeStore is an in-memory otp.Store for tests. TTLs are honored against
// an injectable clock so expiry can be simulated without sleeping.
type FakeStore struct {
	mu      sync.Mutex
	entries map[string]entry
	nowFunc func() time.Time

	// Fail makes every operation report the store as unavailable.
	Fail bool
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		entries: make(map[string]entry),
		nowFunc: time.Now,
	}
}

// SetNowFunc overrides the clock used for TTL checks.
func (s *FakeStore) SetNowFunc(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFunc = now
}

func (s *FakeStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Fail {
		return otp.ErrStoreUnavailable
	}
	s.entries[key] = entry{value: value, expiresAt: s.nowFunc().Add(ttl)}
	return nil
}

func (s *FakeStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Fail {
		return "", false, otp.ErrStoreUnavailable
	}
	e, ok := s.entries[key]
	if !ok || s.nowFunc().After(e.expiresAt) {
		delete(s.entries, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (s *FakeStore) GetAndDelete(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Fail {
		return "", false, otp.ErrStoreUnavailable
	}
	e, ok := s.entries[key]
	if !ok || s.nowFunc().After(e.expiresAt) {
		delete(s.entries, key)
		return "", false, nil
	}
	delete(s.entries, key)
	return e.value, true, nil
}

func (s *FakeStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Fail {
		return otp.ErrStoreUnavailable
	}
	delete(s.entries, key)
	return nil
}

// Value returns the raw stored value for a key, for test assertions.
func (s *FakeStore) Value(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return "", false
	}
	return e.value, true
}

// Len reports the number of live entries.
func (s *FakeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
