package repofake

import (
	"context"
	"sync"
	"time"

	"github.com/facilitaservicos/authcore/identity"
	"github.com/google/uuid"
)

var _ identity.Repo = (*FakeCredentialRepo)(nil)

// FakeCredentialRepo is an in-memory identity.Repo for tests. Counter
// updates happen under the repo lock, matching the per-identity atomicity
// a real single-row update gives.
type FakeCredentialRepo struct {
	identities map[string]*identity.Identity
	loginIDs   map[string]string // username or email -> identity id
	lock       sync.RWMutex

	// FailLookups makes every read fail, for backend-unavailable tests.
	FailLookups bool
	// FailWrites makes every mutation fail.
	FailWrites bool
}

func NewFakeCredentialRepo() *FakeCredentialRepo {
	return &FakeCredentialRepo{
		identities: make(map[string]*identity.Identity),
		loginIDs:   make(map[string]string),
	}
}

// Upsert stores an identity and indexes both login identifiers.
func (r *FakeCredentialRepo) Upsert(ident *identity.Identity) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if ident.ID == "" {
		ident.ID = uuid.New().String()
	}
	r.identities[ident.ID] = ident
	if ident.Username != "" {
		r.loginIDs[ident.Username] = ident.ID
	}
	if ident.Email != "" {
		r.loginIDs[ident.Email] = ident.ID
	}
}

func (r *FakeCredentialRepo) FindByLoginID(ctx context.Context, loginID string) (*identity.Identity, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	if r.FailLookups {
		return nil, errBackendDown
	}
	id, ok := r.loginIDs[loginID]
	if !ok {
		return nil, identity.ErrNotFound
	}
	copied := *r.identities[id]
	return &copied, nil
}

func (r *FakeCredentialRepo) IncrementFailedAttempts(ctx context.Context, id string, at time.Time) (int, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.FailWrites {
		return 0, errBackendDown
	}
	ident, ok := r.identities[id]
	if !ok {
		return 0, identity.ErrNotFound
	}
	ident.FailedAttempts++
	ident.LastFailureAt = at
	return ident.FailedAttempts, nil
}

func (r *FakeCredentialRepo) ResetFailedAttempts(ctx context.Context, id string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.FailWrites {
		return errBackendDown
	}
	ident, ok := r.identities[id]
	if !ok {
		return identity.ErrNotFound
	}
	ident.FailedAttempts = 0
	return nil
}

func (r *FakeCredentialRepo) RecordSuccess(ctx context.Context, id string, at time.Time) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.FailWrites {
		return errBackendDown
	}
	ident, ok := r.identities[id]
	if !ok {
		return identity.ErrNotFound
	}
	ident.LastSuccessAt = at
	return nil
}

func (r *FakeCredentialRepo) UpdatePasswordHash(ctx context.Context, id string, hash string, at time.Time) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.FailWrites {
		return errBackendDown
	}
	ident, ok := r.identities[id]
	if !ok {
		return identity.ErrNotFound
	}
	ident.PasswordHash = hash
	ident.LastPasswordChange = at
	return nil
}

// Get returns the stored identity by ID, for test assertions.
func (r *FakeCredentialRepo) Get(id string) (*identity.Identity, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	ident, ok := r.identities[id]
	if !ok {
		return nil, false
	}
	copied := *ident
	return &copied, true
}
