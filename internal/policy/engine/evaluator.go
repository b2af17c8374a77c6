package engine

import (
	"context"

	"github.com/shopspring/decimal"
)

// LedgerInput describes a balance mutation about to be applied.
type LedgerInput struct {
	Operation        string // "deposit" or "withdrawal"
	Username         string
	Amount           decimal.Decimal
	Balance          decimal.Decimal // before the operation
	Age              int
	TransactionCount int
}

// Decision is the outcome of a ledger policy evaluation.
type Decision struct {
	Allow  bool
	Reason string
}

// Evaluator evaluates ledger policies using OPA or other engines.
type Evaluator interface {
	// EvaluateLedger decides whether the mutation may proceed. A non-nil error means no decision
	// could be made; callers must not apply the mutation.
	EvaluateLedger(ctx context.Context, in LedgerInput) (Decision, error)
}
