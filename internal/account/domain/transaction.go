package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// TransactionKind is the direction of a ledger entry.
type TransactionKind string

const (
	TransactionDeposit    TransactionKind = "deposit"
	TransactionWithdrawal TransactionKind = "withdrawal"
)

// UnmarshalJSON accepts the capitalised kinds written by older users.json files.
func (k *TransactionKind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*k = TransactionKind(strings.ToLower(s))
	return nil
}

// Transaction is an immutable ledger entry. Amount is always positive; Kind gives the sign.
type Transaction struct {
	ID     string          `json:"id"`
	Kind   TransactionKind `json:"type"`
	Amount decimal.Decimal `json:"amount"`
	Time   time.Time       `json:"time"`
}

// MarshalJSON writes Amount as a JSON number.
func (t Transaction) MarshalJSON() ([]byte, error) {
	type plain Transaction
	return json.Marshal(struct {
		plain
		Amount json.Number `json:"amount"`
	}{plain(t), jsonNumber(t.Amount)})
}

// NewTransaction returns a transaction stamped with a fresh ULID.
func NewTransaction(kind TransactionKind, amount decimal.Decimal, at time.Time) Transaction {
	return Transaction{
		ID:     ulid.Make().String(),
		Kind:   kind,
		Amount: amount,
		Time:   at.UTC(),
	}
}

// Signed returns the amount with the sign implied by Kind.
func (t Transaction) Signed() decimal.Decimal {
	if t.Kind == TransactionWithdrawal {
		return t.Amount.Neg()
	}
	return t.Amount
}
