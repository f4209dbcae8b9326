package payment

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MockRepository struct {
	payments map[string]*Payment
	mu       sync.RWMutex
}

func NewMockRepository() *MockRepository {
	return &MockRepository{payments: make(map[string]*Payment)}
}

func (r *MockRepository) Create(_ context.Context, payment *Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *payment
	r.payments[payment.ID] = &copied
	return nil
}

func (r *MockRepository) FindByProviderID(_ context.Context, providerID string) (*Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.payments {
		if p.ProviderPaymentID == providerID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, ErrPaymentNotFound
}

func (r *MockRepository) ListByAccount(_ context.Context, accountID string) ([]Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Payment
	for _, p := range r.payments {
		if p.AccountID == accountID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MockRepository) MarkPaid(_ context.Context, id string, amount float64, at time.Time) error {
	return r.update(id, func(p *Payment) {
		paidAt := at
		p.Status = StatusPaid
		p.Amount = amount
		p.PaidAt = &paidAt
	})
}

func (r *MockRepository) MarkCanceled(_ context.Context, id string) error {
	return r.update(id, func(p *Payment) { p.Status = StatusCanceled })
}

func (r *MockRepository) update(id string, fn func(p *Payment)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[id]
	if !ok {
		return ErrPaymentNotFound
	}
	if p.Status == StatusPending {
		fn(p)
	}
	return nil
}

// Get returns a copy of the stored payment, for assertions.
func (r *MockRepository) Get(id string) (Payment, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.payments[id]
	if !ok {
		return Payment{}, false
	}
	return *p, true
}
