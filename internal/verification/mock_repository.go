package verification

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MockRepository struct {
	codes  []*Code
	nextID uint64
	mu     sync.RWMutex
}

func NewMockRepository() *MockRepository {
	return &MockRepository{}
}

func (r *MockRepository) Create(_ context.Context, code *Code) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	code.ID = r.nextID
	copied := *code
	r.codes = append(r.codes, &copied)
	return nil
}

func (r *MockRepository) Latest(_ context.Context, email string) (*Code, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *Code
	for _, c := range r.codes {
		if c.Email != email || c.Used {
			continue
		}
		if latest == nil || !c.CreatedAt.Before(latest.CreatedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, ErrCodeNotFound
	}
	copied := *latest
	return &copied, nil
}

func (r *MockRepository) find(id uint64) *Code {
	for _, c := range r.codes {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (r *MockRepository) ReserveAttempt(_ context.Context, id uint64, spent bool, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.find(id)
	if c == nil || c.Used != spent || c.Attempts >= limit {
		return 0, nil
	}
	c.Attempts++
	return c.Attempts, nil
}

func (r *MockRepository) MarkUsed(_ context.Context, id uint64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.find(id)
	if c == nil || c.Used {
		return false, nil
	}
	c.Used = true
	c.Attempts = 0
	verified := at
	c.VerifiedAt = &verified
	return true, nil
}

func (r *MockRepository) InvalidateOutstanding(_ context.Context, email string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, c := range r.codes {
		if c.Email == email && !c.Used {
			c.Used = true
			n++
		}
	}
	return n, nil
}

func (r *MockRepository) ListVerifiedSince(_ context.Context, email string, since time.Time) ([]Code, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Code
	for _, c := range r.codes {
		if c.Email == email && c.Used && c.VerifiedAt != nil && !c.VerifiedAt.Before(since) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VerifiedAt.After(*out[j].VerifiedAt) })
	return out, nil
}

func (r *MockRepository) DeleteByEmail(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.codes[:0]
	for _, c := range r.codes {
		if c.Email != email {
			kept = append(kept, c)
		}
	}
	r.codes = kept
	return nil
}

func (r *MockRepository) DeleteExpiredBefore(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	kept := r.codes[:0]
	for _, c := range r.codes {
		if c.ExpiresAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, c)
	}
	r.codes = kept
	return n, nil
}

// Count returns how many codes are stored for email, spent or not.
func (r *MockRepository) Count(email string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, c := range r.codes {
		if c.Email == email {
			n++
		}
	}
	return n
}
