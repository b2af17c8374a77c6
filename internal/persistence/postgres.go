package persistence

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"smartbanker/backend/internal/account/domain"
)

// DB is the subset of *pgxpool.Pool used by PostgresGateway.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const (
	selectAccountsSQL = `SELECT document FROM accounts ORDER BY position`
	deleteAccountsSQL = `DELETE FROM accounts`
	insertAccountSQL  = `INSERT INTO accounts (username, email, position, document) VALUES ($1, $2, $3, $4)`
)

// PostgresGateway stores one row per account, each holding the full JSON document.
// SaveAll replaces the table contents inside a single transaction.
type PostgresGateway struct {
	db DB
}

// NewPostgresGateway returns a gateway that uses db. The accounts table must exist (see cmd/migrate).
func NewPostgresGateway(db DB) *PostgresGateway {
	return &PostgresGateway{db: db}
}

// LoadAll reads every account document in insertion order.
func (g *PostgresGateway) LoadAll(ctx context.Context) ([]domain.Account, error) {
	rows, err := g.db.Query(ctx, selectAccountsSQL)
	if err != nil {
		return nil, storageError("select", err)
	}
	defer rows.Close()

	accounts := []domain.Account{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, storageError("scan", err)
		}
		var a domain.Account
		if err := json.Unmarshal(doc, &a); err != nil {
			return nil, storageError("decode", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("select", err)
	}
	return accounts, nil
}

// SaveAll deletes and re-inserts the collection in one transaction.
func (g *PostgresGateway) SaveAll(ctx context.Context, accounts []domain.Account) error {
	tx, err := g.db.Begin(ctx)
	if err != nil {
		return storageError("begin", err)
	}
	if _, err := tx.Exec(ctx, deleteAccountsSQL); err != nil {
		_ = tx.Rollback(ctx)
		return storageError("delete", err)
	}
	for i := range accounts {
		doc, err := json.Marshal(&accounts[i])
		if err != nil {
			_ = tx.Rollback(ctx)
			return storageError("encode", err)
		}
		if _, err := tx.Exec(ctx, insertAccountSQL, accounts[i].Username, accounts[i].Email, i, doc); err != nil {
			_ = tx.Rollback(ctx)
			return storageError("insert", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return storageError("commit", err)
	}
	return nil
}
