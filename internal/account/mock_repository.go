package account

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/elskow/tourfurr/internal/store"
)

// MockRepository is an in-memory Repository for tests. It enforces the same
// uniqueness rules as the users table.
type MockRepository struct {
	accounts map[string]*Account
	mu       sync.RWMutex

	// FailNext, when set, is returned by the next mutating call.
	FailNext error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		accounts: make(map[string]*Account),
	}
}

func (r *MockRepository) takeFailure() error {
	err := r.FailNext
	r.FailNext = nil
	return err
}

func (r *MockRepository) Create(_ context.Context, account *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.takeFailure(); err != nil {
		return err
	}
	if err := r.checkUnique(account.ID, account.Email, account.Nickname); err != nil {
		return err
	}
	if _, exists := r.accounts[account.ID]; exists {
		return &store.ConflictError{Kind: store.ConflictOther, Constraint: "users_pkey", Err: errors.New("duplicate id")}
	}

	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	r.accounts[account.ID] = clone(account)
	return nil
}

func (r *MockRepository) checkUnique(selfID, email, nickname string) error {
	for id, a := range r.accounts {
		if id == selfID {
			continue
		}
		if email != "" && a.Email == email {
			return &store.ConflictError{Kind: store.ConflictEmail, Constraint: "users_email_key", Err: errors.New("duplicate email")}
		}
		if nickname != "" && strings.EqualFold(a.Nickname, nickname) {
			return &store.ConflictError{Kind: store.ConflictNickname, Constraint: "users_nickname_key", Err: errors.New("duplicate nickname")}
		}
	}
	return nil
}

func (r *MockRepository) FindByID(_ context.Context, id string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, exists := r.accounts[id]
	if !exists {
		return nil, ErrAccountNotFound
	}
	return clone(a), nil
}

func (r *MockRepository) FindByEmail(_ context.Context, email string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	email = NormalizeEmail(email)
	for _, a := range r.accounts {
		if a.Email == email {
			return clone(a), nil
		}
	}
	return nil, ErrAccountNotFound
}

func (r *MockRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := r.FindByEmail(ctx, email)
	if errors.Is(err, ErrAccountNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *MockRepository) NicknameExists(_ context.Context, nickname string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.accounts {
		if strings.EqualFold(a.Nickname, nickname) {
			return true, nil
		}
	}
	return false, nil
}

func (r *MockRepository) MarkEmailVerified(_ context.Context, email string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.takeFailure(); err != nil {
		return false, err
	}
	email = NormalizeEmail(email)
	for _, a := range r.accounts {
		if a.Email == email && !a.EmailVerified {
			a.EmailVerified = true
			verifiedAt := at
			a.EmailVerifiedAt = &verifiedAt
			return true, nil
		}
	}
	return false, nil
}

func (r *MockRepository) UpdateProfile(_ context.Context, id string, update ProfileUpdate) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.takeFailure(); err != nil {
		return nil, err
	}
	a, exists := r.accounts[id]
	if !exists {
		return nil, ErrAccountNotFound
	}
	if update.Nickname != nil {
		if err := r.checkUnique(id, "", *update.Nickname); err != nil {
			return nil, err
		}
	}
	update.apply(a)
	a.UpdatedAt = time.Now().UTC()
	return clone(a), nil
}

func (r *MockRepository) SetAvatar(_ context.Context, id, key string) error {
	return r.mutate(id, func(a *Account) { a.AvatarKey = key })
}

func (r *MockRepository) SetTeam(_ context.Context, id string, teamID *string) error {
	return r.mutate(id, func(a *Account) {
		if teamID == nil {
			a.TeamID = nil
			return
		}
		t := *teamID
		a.TeamID = &t
	})
}

func (r *MockRepository) mutate(id string, fn func(a *Account)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.takeFailure(); err != nil {
		return err
	}
	a, exists := r.accounts[id]
	if !exists {
		return ErrAccountNotFound
	}
	fn(a)
	return nil
}

func (r *MockRepository) TransitionStatus(_ context.Context, id string, from, to Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	a, exists := r.accounts[id]
	if !exists {
		return ErrAccountNotFound
	}
	if a.Status != from {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, to)
	}
	a.Status = to
	return nil
}

func (r *MockRepository) MigrateIdentity(_ context.Context, oldID, newID string, verifiedAt time.Time) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.takeFailure(); err != nil {
		return nil, err
	}
	a, exists := r.accounts[oldID]
	if !exists {
		migrated, ok := r.accounts[newID]
		if !ok {
			return nil, ErrAccountNotFound
		}
		return clone(migrated), nil
	}

	delete(r.accounts, oldID)
	a.ID = newID
	a.LegacyPasswordHash = nil
	a.EmailVerified = true
	if a.EmailVerifiedAt == nil {
		at := verifiedAt
		a.EmailVerifiedAt = &at
	}
	r.accounts[newID] = a
	return clone(a), nil
}

func (r *MockRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.takeFailure(); err != nil {
		return err
	}
	if _, exists := r.accounts[id]; !exists {
		return ErrAccountNotFound
	}
	delete(r.accounts, id)
	return nil
}

func (r *MockRepository) ListUnverifiedBefore(_ context.Context, cutoff time.Time, limit int) ([]Account, error) {
	return r.list(func(a *Account) bool {
		return !a.EmailVerified && !a.HasLegacyPassword() && a.CreatedAt.Before(cutoff)
	}, limit), nil
}

func (r *MockRepository) ListByStatus(_ context.Context, status Status) ([]Account, error) {
	return r.list(func(a *Account) bool {
		return a.EmailVerified && (status == "" || a.Status == status)
	}, 0), nil
}

func (r *MockRepository) ListByTeam(_ context.Context, teamID string) ([]Account, error) {
	return r.list(func(a *Account) bool {
		return a.TeamID != nil && *a.TeamID == teamID
	}, 0), nil
}

func (r *MockRepository) list(match func(a *Account) bool, limit int) []Account {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Account
	for _, a := range r.accounts {
		if match(a) {
			out = append(out, *clone(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Put stores a copy of account as-is, bypassing uniqueness checks.
func (r *MockRepository) Put(account *Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.ID] = clone(account)
}

func (r *MockRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.accounts)
}
