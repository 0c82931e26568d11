package identity

import (
	"context"
	"errors"
	"time"
)

// RetryingRepo retries the idempotent read path (FindByLoginID) a bounded
// number of times with a growing delay. Mutations are never retried here:
// counter increments and hash updates carry no idempotency token, so a
// blind retry could double-apply them.
type RetryingRepo struct {
	repo     Repo
	attempts int
	delay    time.Duration
}

// NewRetryingRepo wraps repo so lookups are attempted up to attempts times,
// waiting delay, 2*delay, ... between tries.
func NewRetryingRepo(repo Repo, attempts int, delay time.Duration) *RetryingRepo {
	if attempts < 1 {
		attempts = 1
	}
	return &RetryingRepo{repo: repo, attempts: attempts, delay: delay}
}

func (r *RetryingRepo) FindByLoginID(ctx context.Context, loginID string) (*Identity, error) {
	var ident *Identity
	var err error

	for attempt := 0; attempt < r.attempts; attempt++ {
		ident, err = r.repo.FindByLoginID(ctx, loginID)
		if err == nil || errors.Is(err, ErrNotFound) {
			return ident, err
		}
		if attempt == r.attempts-1 {
			break
		}

		wait := time.Duration(attempt+1) * r.delay
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, err
}

func (r *RetryingRepo) IncrementFailedAttempts(ctx context.Context, id string, at time.Time) (int, error) {
	return r.repo.IncrementFailedAttempts(ctx, id, at)
}

func (r *RetryingRepo) ResetFailedAttempts(ctx context.Context, id string) error {
	return r.repo.ResetFailedAttempts(ctx, id)
}

func (r *RetryingRepo) RecordSuccess(ctx context.Context, id string, at time.Time) error {
	return r.repo.RecordSuccess(ctx, id, at)
}

func (r *RetryingRepo) UpdatePasswordHash(ctx context.Context, id string, hash string, at time.Time) error {
	return r.repo.UpdatePasswordHash(ctx, id, hash, at)
}

var _ Repo = (*RetryingRepo)(nil)
