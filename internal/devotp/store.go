// Package devotp keeps the last issued one-time code per username in memory so a developer can
// read it back over GET /dev/otp/{username}. Only wired when OTP_RETURN_TO_CLIENT is set outside production.
package devotp

import (
	"context"
	"sync"
	"time"
)

// Store holds plain codes by username for dev-only retrieval.
type Store interface {
	// Put stores otp for username until expiresAt, replacing any earlier code.
	Put(ctx context.Context, username, otp string, expiresAt time.Time)
	// Get returns the code for username if present and not expired.
	Get(ctx context.Context, username string) (otp string, ok bool)
	// Delete drops the code for username, e.g. once it has been consumed.
	Delete(ctx context.Context, username string)
}

type entry struct {
	otp       string
	expiresAt time.Time
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu   sync.Mutex
	m    map[string]entry
	nowF func() time.Time
}

// NewMemoryStore returns a new in-memory dev OTP store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]entry),
		nowF: time.Now,
	}
}

// Put implements Store.
func (s *MemoryStore) Put(ctx context.Context, username, otp string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[username] = entry{otp: otp, expiresAt: expiresAt}
}

// Get implements Store. Expired entries are dropped on read.
func (s *MemoryStore) Get(ctx context.Context, username string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[username]
	if !ok {
		return "", false
	}
	if !e.expiresAt.After(s.nowF()) {
		delete(s.m, username)
		return "", false
	}
	return e.otp, true
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, username)
}
