package team

import (
	"context"
	"sort"
	"sync"
)

type MockRepository struct {
	teams map[string]Team
	mu    sync.RWMutex
}

func NewMockRepository() *MockRepository {
	return &MockRepository{teams: make(map[string]Team)}
}

func (r *MockRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.teams)), nil
}

func (r *MockRepository) CreateAll(_ context.Context, teams []Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range teams {
		r.teams[t.ID] = t
	}
	return nil
}

func (r *MockRepository) List(_ context.Context) ([]Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Team, 0, len(r.teams))
	for _, t := range r.teams {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MockRepository) FindByID(_ context.Context, id string) (*Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.teams[id]
	if !ok {
		return nil, ErrTeamNotFound
	}
	return &t, nil
}
