package persistence

import (
	"context"
	"sync"

	"smartbanker/backend/internal/account/domain"
)

// MemoryGateway is an in-memory Gateway for tests and local runs. SaveErr, when set, is
// returned by every SaveAll so callers can exercise failed saves.
type MemoryGateway struct {
	mu       sync.Mutex
	accounts []domain.Account
	SaveErr  error
	saves    int
}

// NewMemoryGateway returns an empty in-memory gateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{}
}

// LoadAll returns a deep copy of the stored collection.
func (g *MemoryGateway) LoadAll(ctx context.Context) ([]domain.Account, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return cloneAll(g.accounts), nil
}

// SaveAll replaces the stored collection with a deep copy of accounts.
func (g *MemoryGateway) SaveAll(ctx context.Context, accounts []domain.Account) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.SaveErr != nil {
		return storageError("save", g.SaveErr)
	}
	g.accounts = cloneAll(accounts)
	g.saves++
	return nil
}

// Saves reports how many successful SaveAll calls were made.
func (g *MemoryGateway) Saves() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.saves
}

func cloneAll(in []domain.Account) []domain.Account {
	out := make([]domain.Account, len(in))
	for i := range in {
		out[i] = *in[i].Clone()
	}
	return out
}
