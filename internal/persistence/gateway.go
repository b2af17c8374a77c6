// Package persistence stores the full account collection and provides the serialization point
// every mutation goes through. Storage is whole-collection: load, mutate a copy, save.
package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/oops"

	"smartbanker/backend/internal/account/domain"
)

// ErrStorageFailure marks any I/O or decoding failure of the durable collection.
var ErrStorageFailure = errors.New("storage failure")

// Gateway loads and atomically replaces the durable account collection.
type Gateway interface {
	// LoadAll returns every account. A store that does not exist yet yields an empty collection.
	LoadAll(ctx context.Context) ([]domain.Account, error)
	// SaveAll atomically replaces the durable collection with accounts.
	SaveAll(ctx context.Context, accounts []domain.Account) error
}

func storageError(op string, err error) error {
	return oops.
		Code("STORAGE_FAILURE").
		In("persistence").
		With("operation", op).
		Wrap(fmt.Errorf("%w: %w", ErrStorageFailure, err))
}
