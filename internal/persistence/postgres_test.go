package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartbanker/backend/internal/account/domain"
)

func TestPostgresGateway_LoadAll(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	alice := sampleAccount("alice", "a@x.com")
	doc, err := json.Marshal(&alice)
	require.NoError(t, err)
	mock.ExpectQuery(`SELECT document FROM accounts ORDER BY position`).
		WillReturnRows(pgxmock.NewRows([]string{"document"}).AddRow(doc))

	accounts, err := NewPostgresGateway(mock).LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "alice", accounts[0].Username)
	assert.True(t, accounts[0].Balance.Equal(alice.Balance))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGateway_LoadAllEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT document FROM accounts`).
		WillReturnRows(pgxmock.NewRows([]string{"document"}))

	accounts, err := NewPostgresGateway(mock).LoadAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, accounts)
	assert.Empty(t, accounts)
}

func TestPostgresGateway_LoadAllQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT document FROM accounts`).WillReturnError(errors.New("connection refused"))

	_, err = NewPostgresGateway(mock).LoadAll(context.Background())
	assert.ErrorIs(t, err, ErrStorageFailure)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestPostgresGateway_SaveAllReplacesInTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM accounts`).WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec(`INSERT INTO accounts`).
		WithArgs("alice", "a@x.com", 0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO accounts`).
		WithArgs("bob", "b@x.com", 1, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err = NewPostgresGateway(mock).SaveAll(context.Background(), []domain.Account{
		sampleAccount("alice", "a@x.com"),
		sampleAccount("bob", "b@x.com"),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGateway_SaveAllRollsBackOnInsertError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM accounts`).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`INSERT INTO accounts`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("unique violation"))
	mock.ExpectRollback()

	err = NewPostgresGateway(mock).SaveAll(context.Background(), []domain.Account{sampleAccount("alice", "a@x.com")})
	assert.ErrorIs(t, err, ErrStorageFailure)
	assert.NoError(t, mock.ExpectationsWereMet())
}
