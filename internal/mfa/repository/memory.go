package repository

import (
	"context"
	"sync"

	"smartbanker/backend/internal/mfa/domain"
)

// MemoryRepository keeps challenges in a map keyed by username.
type MemoryRepository struct {
	mu sync.Mutex
	m  map[string]domain.Challenge
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{m: make(map[string]domain.Challenge)}
}

// Put implements Repository.
func (r *MemoryRepository) Put(ctx context.Context, c *domain.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[c.Username] = *c
	return nil
}

// GetByUsername implements Repository. The returned value is a copy.
func (r *MemoryRepository) GetByUsername(ctx context.Context, username string) (*domain.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.m[username]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// Delete implements Repository.
func (r *MemoryRepository) Delete(ctx context.Context, username, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.m[username]; ok && c.ID == id {
		delete(r.m, username)
	}
	return nil
}
