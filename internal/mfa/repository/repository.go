package repository

import (
	"context"
	"time"

	"smartbanker/backend/internal/mfa/domain"
)

// Repository holds at most one challenge per username.
type Repository interface {
	// Put stores c as the live challenge for c.Username, replacing any previous one.
	Put(ctx context.Context, c *domain.Challenge) error
	// GetByUsername returns the live challenge, or nil if there is none.
	GetByUsername(ctx context.Context, username string) (*domain.Challenge, error)
	// Delete removes the challenge for username only if its ID is id. No-op otherwise.
	Delete(ctx context.Context, username, id string) error
}

// DefaultChallengeTTL is how long a code stays valid.
const DefaultChallengeTTL = 5 * time.Minute
