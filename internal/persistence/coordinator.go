package persistence

import (
	"context"
	"sync"

	"smartbanker/backend/internal/account/domain"
)

// Coordinator serializes access to a Gateway. Update holds the exclusive lock for the whole
// load→mutate→save sequence; View holds the shared lock so it never observes a save in progress.
type Coordinator struct {
	mu sync.RWMutex
	gw Gateway
}

// NewCoordinator returns a Coordinator over gw.
func NewCoordinator(gw Gateway) *Coordinator {
	return &Coordinator{gw: gw}
}

// View loads a consistent snapshot and passes it to fn. fn must not retain the slice.
func (c *Coordinator) View(ctx context.Context, fn func(accounts []domain.Account) error) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	accounts, err := c.gw.LoadAll(ctx)
	if err != nil {
		return err
	}
	return fn(accounts)
}

// Update runs fn over the loaded collection and saves what it returns.
// If fn returns an error nothing is saved and the error is returned unchanged.
func (c *Coordinator) Update(ctx context.Context, fn func(accounts []domain.Account) ([]domain.Account, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	accounts, err := c.gw.LoadAll(ctx)
	if err != nil {
		return err
	}
	next, err := fn(accounts)
	if err != nil {
		return err
	}
	return c.gw.SaveAll(ctx, next)
}
