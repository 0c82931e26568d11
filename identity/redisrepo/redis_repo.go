package redisrepo

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/facilitaservicos/authcore/identity"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var _ identity.Repo = (*Repo)(nil)

const (
	recordKeyPrefix = "identity:record:"
	loginKeyPrefix  = "identity:login:"
)

// record is the storage shape of an identity. It exists because the
// public Identity type never serializes the password hash or lockout
// counters, while the repository must persist both.
type record struct {
	ID                 string    `json:"id"`
	Username           string    `json:"username"`
	Email              string    `json:"email,omitempty"`
	PasswordHash       string    `json:"password_hash"`
	Active             bool      `json:"active"`
	TwoFactorEnabled   bool      `json:"two_factor"`
	FailedAttempts     int       `json:"failed_attempts"`
	LastFailureAt      time.Time `json:"last_failure_at,omitempty"`
	LastSuccessAt      time.Time `json:"last_success_at,omitempty"`
	LastPasswordChange time.Time `json:"last_password_change,omitempty"`
}

// Repo persists identities in Redis. Each identity lives under a single
// record key, with login identifiers (username and email) indexed to the
// record's ID. Counter mutations run under WATCH so concurrent failed
// logins cannot lose increments.
type Repo struct {
	client *redis.Client
}

func New(client *redis.Client) *Repo {
	return &Repo{client: client}
}

// Save writes an identity record and its login index entries. A missing
// ID is assigned. Intended for provisioning and administrative updates;
// the authentication core only uses the narrower mutation methods.
func (r *Repo) Save(ctx context.Context, ident *identity.Identity) error {
	if ident.ID == "" {
		ident.ID = uuid.NewString()
	}
	rec := toRecord(ident)
	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "[Repo.Save] marshal record")
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, recordKeyPrefix+rec.ID, payload, 0)
	if rec.Username != "" {
		pipe.Set(ctx, loginKey(rec.Username), rec.ID, 0)
	}
	if rec.Email != "" {
		pipe.Set(ctx, loginKey(rec.Email), rec.ID, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "[Repo.Save] redis pipeline")
	}
	return nil
}

func (r *Repo) FindByLoginID(ctx context.Context, loginID string) (*identity.Identity, error) {
	id, err := r.client.Get(ctx, loginKey(loginID)).Result()
	if err == redis.Nil {
		return nil, identity.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Repo.FindByLoginID] redis get login index")
	}

	payload, err := r.client.Get(ctx, recordKeyPrefix+id).Result()
	if err == redis.Nil {
		return nil, identity.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Repo.FindByLoginID] redis get record")
	}

	var rec record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, errors.Wrap(err, "[Repo.FindByLoginID] unmarshal record")
	}
	return fromRecord(rec), nil
}

func (r *Repo) IncrementFailedAttempts(ctx context.Context, id string, at time.Time) (int, error) {
	var attempts int
	err := r.update(ctx, id, func(rec *record) {
		rec.FailedAttempts++
		rec.LastFailureAt = at
		attempts = rec.FailedAttempts
	})
	if err != nil {
		return 0, errors.Wrap(err, "[Repo.IncrementFailedAttempts]")
	}
	return attempts, nil
}

func (r *Repo) ResetFailedAttempts(ctx context.Context, id string) error {
	err := r.update(ctx, id, func(rec *record) {
		rec.FailedAttempts = 0
	})
	return errors.Wrap(err, "[Repo.ResetFailedAttempts]")
}

func (r *Repo) RecordSuccess(ctx context.Context, id string, at time.Time) error {
	err := r.update(ctx, id, func(rec *record) {
		rec.FailedAttempts = 0
		rec.LastSuccessAt = at
	})
	return errors.Wrap(err, "[Repo.RecordSuccess]")
}

func (r *Repo) UpdatePasswordHash(ctx context.Context, id string, hash string, at time.Time) error {
	err := r.update(ctx, id, func(rec *record) {
		rec.PasswordHash = hash
		rec.LastPasswordChange = at
	})
	return errors.Wrap(err, "[Repo.UpdatePasswordHash]")
}

// update applies mutate to the identity's record under an optimistic
// transaction. Redis aborts the transaction if the record changed between
// read and write, in which case the whole read-modify-write is retried.
func (r *Repo) update(ctx context.Context, id string, mutate func(*record)) error {
	key := recordKeyPrefix + id

	for {
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			payload, err := tx.Get(ctx, key).Result()
			if err == redis.Nil {
				return identity.ErrNotFound
			}
			if err != nil {
				return errors.Wrap(err, "redis get record")
			}

			var rec record
			if err := json.Unmarshal([]byte(payload), &rec); err != nil {
				return errors.Wrap(err, "unmarshal record")
			}
			mutate(&rec)

			updated, err := json.Marshal(rec)
			if err != nil {
				return errors.Wrap(err, "marshal record")
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, 0)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		return err
	}
}

func loginKey(loginID string) string {
	return loginKeyPrefix + strings.ToLower(loginID)
}

func toRecord(ident *identity.Identity) record {
	return record{
		ID:                 ident.ID,
		Username:           ident.Username,
		Email:              ident.Email,
		PasswordHash:       ident.PasswordHash,
		Active:             ident.Active,
		TwoFactorEnabled:   ident.TwoFactorEnabled,
		FailedAttempts:     ident.FailedAttempts,
		LastFailureAt:      ident.LastFailureAt,
		LastSuccessAt:      ident.LastSuccessAt,
		LastPasswordChange: ident.LastPasswordChange,
	}
}

func fromRecord(rec record) *identity.Identity {
	return &identity.Identity{
		ID:                 rec.ID,
		Username:           rec.Username,
		Email:              rec.Email,
		PasswordHash:       rec.PasswordHash,
		Active:             rec.Active,
		TwoFactorEnabled:   rec.TwoFactorEnabled,
		FailedAttempts:     rec.FailedAttempts,
		LastFailureAt:      rec.LastFailureAt,
		LastSuccessAt:      rec.LastSuccessAt,
		LastPasswordChange: rec.LastPasswordChange,
	}
}
