// Package repository is the CredentialStore: whole-record account reads and writes on top of
// the persistence Coordinator.
package repository

import (
	"context"
	"errors"
	"strings"

	"smartbanker/backend/internal/account/domain"
	"smartbanker/backend/internal/persistence"
)

// Sentinel errors for the store; handlers map them to HTTP status codes.
var (
	ErrDuplicateIdentity = errors.New("username or email already registered")
	ErrNotFound          = errors.New("account not found")
)

// DuplicateError reports which identity field collided. It matches ErrDuplicateIdentity.
type DuplicateError struct {
	Field string // "username" or "email"
}

func (e *DuplicateError) Error() string { return e.Field + " already registered" }

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicateIdentity }

// Repository defines persistence for accounts.
type Repository interface {
	Create(ctx context.Context, a *domain.Account) error
	GetByUsername(ctx context.Context, username string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Update(ctx context.Context, a *domain.Account) error
	// Mutate loads the account, applies fn to a copy and saves it in one critical section.
	// If fn returns an error nothing is saved.
	Mutate(ctx context.Context, username string, fn func(a *domain.Account) error) (*domain.Account, error)
}

// Store implements Repository over a persistence.Coordinator.
type Store struct {
	coord *persistence.Coordinator
}

// NewStore returns a Store that serializes every write through coord.
func NewStore(coord *persistence.Coordinator) *Store {
	return &Store{coord: coord}
}

// Create appends a. Fails with ErrDuplicateIdentity if the username or email is taken; the existing record is left as is.
func (s *Store) Create(ctx context.Context, a *domain.Account) error {
	return s.coord.Update(ctx, func(accounts []domain.Account) ([]domain.Account, error) {
		for i := range accounts {
			if accounts[i].Username == a.Username {
				return nil, &DuplicateError{Field: "username"}
			}
			if sameEmail(accounts[i].Email, a.Email) {
				return nil, &DuplicateError{Field: "email"}
			}
		}
		return append(accounts, *a.Clone()), nil
	})
}

// GetByUsername returns a copy of the account, or ErrNotFound.
func (s *Store) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	return s.find(ctx, func(a *domain.Account) bool { return a.Username == username })
}

// GetByEmail returns a copy of the account registered with email, or ErrNotFound.
func (s *Store) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return s.find(ctx, func(a *domain.Account) bool { return sameEmail(a.Email, email) })
}

// sameEmail compares addresses case-insensitively, the way recovery matches them.
func sameEmail(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Update replaces the whole stored record with the same username.
func (s *Store) Update(ctx context.Context, a *domain.Account) error {
	return s.coord.Update(ctx, func(accounts []domain.Account) ([]domain.Account, error) {
		i := indexOf(accounts, a.Username)
		if i < 0 {
			return nil, ErrNotFound
		}
		accounts[i] = *a.Clone()
		return accounts, nil
	})
}

// Mutate implements Repository. The returned account is the saved state.
func (s *Store) Mutate(ctx context.Context, username string, fn func(a *domain.Account) error) (*domain.Account, error) {
	var out *domain.Account
	err := s.coord.Update(ctx, func(accounts []domain.Account) ([]domain.Account, error) {
		i := indexOf(accounts, username)
		if i < 0 {
			return nil, ErrNotFound
		}
		next := accounts[i].Clone()
		if err := fn(next); err != nil {
			return nil, err
		}
		// Identity fields are immutable after creation.
		next.Username = accounts[i].Username
		next.Email = accounts[i].Email
		accounts[i] = *next
		out = next.Clone()
		return accounts, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) find(ctx context.Context, match func(a *domain.Account) bool) (*domain.Account, error) {
	var out *domain.Account
	err := s.coord.View(ctx, func(accounts []domain.Account) error {
		for i := range accounts {
			if match(&accounts[i]) {
				out = accounts[i].Clone()
				return nil
			}
		}
		return ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func indexOf(accounts []domain.Account, username string) int {
	for i := range accounts {
		if accounts[i].Username == username {
			return i
		}
	}
	return -1
}
