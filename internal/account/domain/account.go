package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MinimumAge is the youngest age accepted at signup. It is checked once, at creation.
const MinimumAge = 18

// Validation errors returned by Validate.
var (
	ErrUnderage     = errors.New("account holder must be at least 18 years old")
	ErrMissingField = errors.New("all fields are required")
	ErrInvalidEmail = errors.New("invalid email format")
)

// ErrInvalidPin is returned by every PIN check that does not match the stored PIN.
var ErrInvalidPin = errors.New("incorrect pin")

// Account is the persisted banking account. PasswordHash and PinHash hold the server-side
// bcrypt of the client digest and never leave the service.
type Account struct {
	Username      string          `json:"username"`
	Email         string          `json:"email"`
	PasswordHash  string          `json:"password"`
	PinHash       string          `json:"pin"`
	Name          string          `json:"name"`
	Age           int             `json:"age"`
	Bank          string          `json:"bank"`
	AccountNumber string          `json:"account"`
	Balance       decimal.Decimal `json:"balance"`
	Transactions  []Transaction   `json:"transactions"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// MarshalJSON writes Balance as a JSON number, the users.json shape.
func (a Account) MarshalJSON() ([]byte, error) {
	type plain Account
	return json.Marshal(struct {
		plain
		Balance json.Number `json:"balance"`
	}{plain(a), jsonNumber(a.Balance)})
}

// Validate checks the fields required at signup. Returns an error describing the first failure.
func (a *Account) Validate() error {
	required := []struct{ name, value string }{
		{"username", a.Username},
		{"email", a.Email},
		{"password", a.PasswordHash},
		{"pin", a.PinHash},
		{"name", a.Name},
		{"bank", a.Bank},
		{"account", a.AccountNumber},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, f.name)
		}
	}
	if !strings.Contains(a.Email, "@") || !strings.Contains(a.Email, ".") {
		return ErrInvalidEmail
	}
	if a.Age < MinimumAge {
		return ErrUnderage
	}
	return nil
}

// Clone returns a deep copy so callers can mutate without touching a shared snapshot.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.Transactions != nil {
		c.Transactions = make([]Transaction, len(a.Transactions))
		copy(c.Transactions, a.Transactions)
	}
	return &c
}

// LedgerBalance recomputes the balance from the transaction log.
func (a *Account) LedgerBalance() decimal.Decimal {
	sum := decimal.Zero
	for _, tx := range a.Transactions {
		sum = sum.Add(tx.Signed())
	}
	return sum
}

// Append records tx as the most recent transaction and applies it to the balance.
// The transaction time is moved forward if needed so times strictly increase in insertion order.
func (a *Account) Append(tx Transaction) Transaction {
	if len(a.Transactions) > 0 {
		last := a.Transactions[0].Time
		if !tx.Time.After(last) {
			tx.Time = last.Add(time.Nanosecond)
		}
	}
	a.Balance = a.Balance.Add(tx.Signed())
	a.Transactions = append([]Transaction{tx}, a.Transactions...)
	return tx
}

// Project returns the sanitized view of the account.
func (a *Account) Project() *Projection {
	txs := make([]Transaction, len(a.Transactions))
	copy(txs, a.Transactions)
	return &Projection{
		Username:      a.Username,
		Name:          a.Name,
		Email:         a.Email,
		Balance:       a.Balance,
		Transactions:  txs,
		Age:           a.Age,
		Bank:          a.Bank,
		AccountNumber: a.AccountNumber,
	}
}

// Projection is the account as returned to clients: no digests.
type Projection struct {
	Username      string          `json:"username"`
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	Balance       decimal.Decimal `json:"balance"`
	Transactions  []Transaction   `json:"transactions"`
	Age           int             `json:"age"`
	Bank          string          `json:"bank"`
	AccountNumber string          `json:"account"`
}

// MarshalJSON writes Balance as a JSON number.
func (p Projection) MarshalJSON() ([]byte, error) {
	type plain Projection
	return json.Marshal(struct {
		plain
		Balance json.Number `json:"balance"`
	}{plain(p), jsonNumber(p.Balance)})
}

// jsonNumber renders d without exponent so every JSON client reads the exact value.
func jsonNumber(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}
