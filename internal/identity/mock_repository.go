package identity

import (
	"context"
	"sync"
	"time"
)

// MockRepository keeps identities in memory, keyed by id.
type MockRepository struct {
	identities map[string]*Identity
	mu         sync.RWMutex
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		identities: make(map[string]*Identity),
	}
}

func (r *MockRepository) Create(_ context.Context, identity *Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.identities[identity.ID]; exists {
		return ErrIdentityExists
	}
	for _, existing := range r.identities {
		if existing.Email == identity.Email {
			return ErrIdentityExists
		}
	}

	copied := *identity
	r.identities[identity.ID] = &copied
	return nil
}

func (r *MockRepository) FindByID(_ context.Context, id string) (*Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, exists := r.identities[id]
	if !exists {
		return nil, ErrIdentityNotFound
	}
	copied := *identity
	return &copied, nil
}

func (r *MockRepository) FindByEmail(_ context.Context, email string) (*Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, identity := range r.identities {
		if identity.Email == email {
			copied := *identity
			return &copied, nil
		}
	}
	return nil, ErrIdentityNotFound
}

func (r *MockRepository) UpdatePassword(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, exists := r.identities[id]
	if !exists {
		return ErrIdentityNotFound
	}
	identity.PasswordHash = hash
	return nil
}

func (r *MockRepository) ConfirmEmail(_ context.Context, email string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, identity := range r.identities {
		if identity.Email == email && identity.EmailConfirmedAt == nil {
			confirmed := at
			identity.EmailConfirmedAt = &confirmed
		}
	}
	return nil
}

func (r *MockRepository) TouchSignIn(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, exists := r.identities[id]
	if !exists {
		return ErrIdentityNotFound
	}
	signedIn := at
	identity.LastSignInAt = &signedIn
	return nil
}

func (r *MockRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.identities[id]; !exists {
		return ErrIdentityNotFound
	}
	delete(r.identities, id)
	return nil
}
