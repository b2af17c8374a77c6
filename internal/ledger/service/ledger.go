// Package service implements the Ledger: deposits, withdrawals, PIN checks and balance reads
// over the CredentialStore.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	accountdomain "smartbanker/backend/internal/account/domain"
	accountrepo "smartbanker/backend/internal/account/repository"
	"smartbanker/backend/internal/audit"
	"smartbanker/backend/internal/policy/engine"
	"smartbanker/backend/internal/security"
	eventdomain "smartbanker/backend/internal/telemetry/domain"
)

var tracer = otel.Tracer("smartbanker/ledger")

// Sentinel errors for the ledger; the handler maps them to HTTP status codes.
var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrPolicyDenied      = errors.New("operation denied by policy")
	ErrInvalidPin        = accountdomain.ErrInvalidPin
)

// DefaultMaxAmount caps a single deposit or withdrawal unless WithMaxAmount overrides it.
var DefaultMaxAmount = decimal.New(1, 9)

const (
	// amountPlaces is the finest unit an amount may carry (cents).
	amountPlaces = 2
	// maxAmountDigits bounds the coefficient and magnitude of an amount before any arithmetic,
	// so a huge exponent is rejected without expanding it.
	maxAmountDigits = 32
)

// AccountRepo is the minimal account repository needed by the ledger.
type AccountRepo interface {
	GetByUsername(ctx context.Context, username string) (*accountdomain.Account, error)
	Mutate(ctx context.Context, username string, fn func(a *accountdomain.Account) error) (*accountdomain.Account, error)
}

// Ledger applies balance mutations. Each one is a single read-modify-write in the store's
// critical section: the balance and the transaction are saved together or not at all.
type Ledger struct {
	accounts  AccountRepo
	hasher    *security.Hasher
	policy    engine.Evaluator
	audit     audit.AuditLogger
	maxAmount decimal.Decimal
	nowF      func() time.Time
}

// NewLedger returns a Ledger. policy and auditLogger may be nil.
func NewLedger(accounts AccountRepo, hasher *security.Hasher, policy engine.Evaluator, auditLogger audit.AuditLogger) *Ledger {
	return &Ledger{
		accounts:  accounts,
		hasher:    hasher,
		policy:    policy,
		audit:     auditLogger,
		maxAmount: DefaultMaxAmount,
		nowF:      time.Now,
	}
}

// WithMaxAmount sets the largest amount a single operation accepts. Non-positive values are ignored.
func (l *Ledger) WithMaxAmount(limit decimal.Decimal) *Ledger {
	if limit.IsPositive() {
		l.maxAmount = limit
	}
	return l
}

// ValidateAmount reports whether amount is usable for one operation: positive, finite, at most
// two decimal places and not above the ledger maximum. Failures wrap ErrInvalidAmount.
func (l *Ledger) ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	exp := int(amount.Exponent())
	if amount.NumDigits() > maxAmountDigits || exp < -maxAmountDigits || amount.NumDigits()+exp > maxAmountDigits {
		return fmt.Errorf("%w: out of range", ErrInvalidAmount)
	}
	if f := amount.InexactFloat64(); math.IsInf(f, 0) || math.IsNaN(f) {
		return fmt.Errorf("%w: not finite", ErrInvalidAmount)
	}
	if !amount.Equal(amount.Truncate(amountPlaces)) {
		return fmt.Errorf("%w: at most %d decimal places", ErrInvalidAmount, amountPlaces)
	}
	if amount.GreaterThan(l.maxAmount) {
		return fmt.Errorf("%w: above the %s limit", ErrInvalidAmount, l.maxAmount)
	}
	return nil
}

// Deposit adds amount to the balance and records a deposit.
func (l *Ledger) Deposit(ctx context.Context, username string, amount decimal.Decimal) (*accountdomain.Projection, error) {
	return l.apply(ctx, accountdomain.TransactionDeposit, username, amount)
}

// Withdraw subtracts amount from the balance and records a withdrawal. An amount above the
// balance fails with ErrInsufficientFunds and changes nothing.
func (l *Ledger) Withdraw(ctx context.Context, username string, amount decimal.Decimal) (*accountdomain.Projection, error) {
	return l.apply(ctx, accountdomain.TransactionWithdrawal, username, amount)
}

// VerifyPin checks pinDigest against the account's PIN without changing anything.
func (l *Ledger) VerifyPin(ctx context.Context, username, pinDigest string) (err error) {
	ctx, span := tracer.Start(ctx, "ledger.VerifyPin", trace.WithAttributes(attribute.String("smartbanker.username", username)))
	defer func() { endSpan(span, err) }()

	a, err := l.accounts.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if err := l.hasher.Compare(a.PinHash, pinDigest); err != nil {
		l.logEvent(ctx, eventdomain.EventPinCheckFailure, username, nil)
		return ErrInvalidPin
	}
	return nil
}

// Account returns a consistent projection of the account.
func (l *Ledger) Account(ctx context.Context, username string) (*accountdomain.Projection, error) {
	a, err := l.accounts.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return a.Project(), nil
}

func (l *Ledger) apply(ctx context.Context, kind accountdomain.TransactionKind, username string, amount decimal.Decimal) (_ *accountdomain.Projection, err error) {
	op := string(kind)
	ctx, span := tracer.Start(ctx, "ledger."+op, trace.WithAttributes(attribute.String("smartbanker.username", username)))
	defer func() { endSpan(span, err) }()

	if err := l.ValidateAmount(amount); err != nil {
		l.reject(ctx, op, username, outcomeInvalid)
		return nil, err
	}
	span.SetAttributes(attribute.String("smartbanker.amount", amount.String()))
	updated, err := l.accounts.Mutate(ctx, username, func(a *accountdomain.Account) error {
		if kind == accountdomain.TransactionWithdrawal && amount.GreaterThan(a.Balance) {
			return ErrInsufficientFunds
		}
		if err := l.checkPolicy(ctx, op, a, amount); err != nil {
			return err
		}
		a.Append(accountdomain.NewTransaction(kind, amount, l.nowF()))
		return nil
	})
	if err != nil {
		l.reject(ctx, op, username, outcomeFor(err))
		return nil, err
	}

	operationsTotal.WithLabelValues(op, outcomeCommitted).Inc()
	amountTotal.WithLabelValues(op).Add(amount.InexactFloat64())
	event := eventdomain.EventDeposit
	if kind == accountdomain.TransactionWithdrawal {
		event = eventdomain.EventWithdrawal
	}
	l.logEvent(ctx, event, username, map[string]string{
		"amount":  amount.String(),
		"balance": updated.Balance.String(),
	})
	return updated.Project(), nil
}

func (l *Ledger) checkPolicy(ctx context.Context, op string, a *accountdomain.Account, amount decimal.Decimal) error {
	if l.policy == nil {
		return nil
	}
	d, err := l.policy.EvaluateLedger(ctx, engine.LedgerInput{
		Operation:        op,
		Username:         a.Username,
		Amount:           amount,
		Balance:          a.Balance,
		Age:              a.Age,
		TransactionCount: len(a.Transactions),
	})
	if err != nil {
		return fmt.Errorf("ledger policy: %w", err)
	}
	if !d.Allow {
		if d.Reason != "" {
			return fmt.Errorf("%w: %s", ErrPolicyDenied, d.Reason)
		}
		return ErrPolicyDenied
	}
	return nil
}

func (l *Ledger) reject(ctx context.Context, op, username, outcome string) {
	operationsTotal.WithLabelValues(op, outcome).Inc()
	if outcome == outcomeNotFound {
		return
	}
	l.logEvent(ctx, eventdomain.EventLedgerRejected, username, map[string]string{
		"operation": op,
		"reason":    outcome,
	})
}

func (l *Ledger) logEvent(ctx context.Context, eventType, username string, metadata map[string]string) {
	if l.audit != nil {
		l.audit.LogEvent(ctx, eventType, username, metadata)
	}
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		return outcomeInsufficient
	case errors.Is(err, ErrPolicyDenied):
		return outcomeDenied
	case errors.Is(err, accountrepo.ErrNotFound):
		return outcomeNotFound
	default:
		return outcomeError
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
