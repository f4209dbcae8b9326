// Package storage keeps user avatars in object storage.
package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var ErrObjectNotFound = errors.New("object not found")

type Store interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// MemoryStore serves development setups without a bucket, and tests.
type MemoryStore struct {
	objects map[string][]byte
	baseURL string
	mu      sync.RWMutex
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		objects: make(map[string][]byte),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (s *MemoryStore) Put(_ context.Context, key string, body []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), body...)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return ErrObjectNotFound
	}
	delete(s.objects, key)
	return nil
}

func (s *MemoryStore) URL(key string) string {
	return joinURL(s.baseURL, key)
}

func (s *MemoryStore) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

func joinURL(base, key string) string {
	if key == "" {
		return ""
	}
	if base == "" {
		return "/" + key
	}
	return base + "/" + key
}
