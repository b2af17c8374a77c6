// Package service implements the authentication state machine: signup, the three-factor login
// (password, one-time code, PIN) and password recovery.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	accountdomain "smartbanker/backend/internal/account/domain"
	accountrepo "smartbanker/backend/internal/account/repository"
	"smartbanker/backend/internal/audit"
	"smartbanker/backend/internal/auth/domain"
	"smartbanker/backend/internal/mfa"
	mfadomain "smartbanker/backend/internal/mfa/domain"
	"smartbanker/backend/internal/security"
	eventdomain "smartbanker/backend/internal/telemetry/domain"
)

var tracer = otel.Tracer("smartbanker/auth")

// Sentinel errors for the machine; the handler maps them to HTTP status codes.
var (
	ErrInvalidCredential    = errors.New("invalid username or password")
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")
	ErrInvalidPin           = accountdomain.ErrInvalidPin
	ErrInvalidFlowState     = errors.New("invalid or expired flow token")
	ErrInvalidInput         = errors.New("invalid input")
)

// AccountRepo is the minimal account repository needed by the machine.
type AccountRepo interface {
	Create(ctx context.Context, a *accountdomain.Account) error
	GetByUsername(ctx context.Context, username string) (*accountdomain.Account, error)
	Mutate(ctx context.Context, username string, fn func(a *accountdomain.Account) error) (*accountdomain.Account, error)
}

// CodeIssuer issues and checks one-time codes.
type CodeIssuer interface {
	Issue(ctx context.Context, username, email string, purpose mfadomain.Purpose) (*mfadomain.Challenge, error)
	Verify(ctx context.Context, username string, purpose mfadomain.Purpose, code string) error
}

// SignupInput carries the signup fields. Password and PIN are client digests.
type SignupInput struct {
	Username       string
	PasswordDigest string
	PinDigest      string
	Name           string
	Age            int
	Bank           string
	AccountNumber  string
	Email          string
}

// Machine moves callers through login and recovery. All state a caller holds between steps is
// in the signed flow token; the machine itself only remembers which reset tokens were spent.
type Machine struct {
	accounts AccountRepo
	codes    CodeIssuer
	hasher   *security.Hasher
	tokens   *security.TokenProvider
	audit    audit.AuditLogger

	mu       sync.Mutex
	consumed map[string]time.Time // jti -> token expiry
	nowF     func() time.Time
}

// NewMachine returns a Machine with the given dependencies. auditLogger may be nil.
func NewMachine(accounts AccountRepo, codes CodeIssuer, hasher *security.Hasher, tokens *security.TokenProvider, auditLogger audit.AuditLogger) *Machine {
	return &Machine{
		accounts: accounts,
		codes:    codes,
		hasher:   hasher,
		tokens:   tokens,
		audit:    auditLogger,
		consumed: make(map[string]time.Time),
		nowF:     time.Now,
	}
}

// Signup creates an account. Both digests are re-hashed before they are stored.
func (m *Machine) Signup(ctx context.Context, in SignupInput) (_ *accountdomain.Projection, err error) {
	ctx, span := m.start(ctx, "auth.Signup", in.Username)
	defer func() { endSpan(span, err) }()

	a := &accountdomain.Account{
		Username:      strings.TrimSpace(in.Username),
		Email:         strings.TrimSpace(in.Email),
		PasswordHash:  in.PasswordDigest,
		PinHash:       in.PinDigest,
		Name:          strings.TrimSpace(in.Name),
		Age:           in.Age,
		Bank:          strings.TrimSpace(in.Bank),
		AccountNumber: strings.TrimSpace(in.AccountNumber),
		Transactions:  []accountdomain.Transaction{},
		CreatedAt:     m.nowF().UTC(),
	}
	if err := a.Validate(); err != nil {
		if errors.Is(err, accountdomain.ErrUnderage) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if a.PasswordHash, err = m.hash(in.PasswordDigest); err != nil {
		return nil, err
	}
	if a.PinHash, err = m.hash(in.PinDigest); err != nil {
		return nil, err
	}
	if err := m.accounts.Create(ctx, a); err != nil {
		return nil, err
	}
	m.logEvent(ctx, eventdomain.EventSignup, a.Username, nil)
	return a.Project(), nil
}

// Login checks the password and, on success, sends a login code and returns a
// password_verified token with the account projection.
func (m *Machine) Login(ctx context.Context, username, passwordDigest string) (_ *domain.Result, err error) {
	ctx, span := m.start(ctx, "auth.Login", username)
	defer func() { endSpan(span, err) }()

	a, err := m.accounts.GetByUsername(ctx, username)
	if errors.Is(err, accountrepo.ErrNotFound) {
		m.logEvent(ctx, eventdomain.EventLoginFailure, username, map[string]string{"step": "password"})
		return nil, ErrInvalidCredential
	}
	if err != nil {
		return nil, err
	}
	if err := m.hasher.Compare(a.PasswordHash, passwordDigest); err != nil {
		m.logEvent(ctx, eventdomain.EventLoginFailure, username, map[string]string{"step": "password"})
		return nil, ErrInvalidCredential
	}
	if _, err := m.codes.Issue(ctx, a.Username, a.Email, mfadomain.PurposeLogin); err != nil {
		return nil, err
	}
	res, err := m.issue(a.Username, mfadomain.PurposeLogin, domain.StatePasswordVerified)
	if err != nil {
		return nil, err
	}
	res.Account = a.Project()
	m.logEvent(ctx, eventdomain.EventLoginPassword, a.Username, nil)
	return res, nil
}

// VerifyCode checks the one-time code for the flow in token. A wrong code leaves the caller's
// token and the live code usable until expiry.
func (m *Machine) VerifyCode(ctx context.Context, token, code string) (_ *domain.Result, err error) {
	flow, err := m.parse(token)
	if err != nil {
		return nil, err
	}
	ctx, span := m.start(ctx, "auth.VerifyCode", flow.Username)
	defer func() { endSpan(span, err) }()

	next, err := domain.Next(flow.Purpose, flow.State, domain.StepCode)
	if err != nil {
		return nil, ErrInvalidFlowState
	}
	if err := m.codes.Verify(ctx, flow.Username, flow.Purpose, code); err != nil {
		if isCodeError(err) {
			m.logEvent(ctx, failureEvent(flow.Purpose), flow.Username, map[string]string{"step": "code"})
			return nil, fmt.Errorf("%w: %w", ErrInvalidOrExpiredCode, err)
		}
		return nil, err
	}
	res, err := m.issue(flow.Username, flow.Purpose, next)
	if err != nil {
		return nil, err
	}
	if flow.Purpose == mfadomain.PurposeLogin {
		m.logEvent(ctx, eventdomain.EventLoginCode, flow.Username, nil)
	} else {
		m.logEvent(ctx, eventdomain.EventRecoveryCode, flow.Username, nil)
	}
	return res, nil
}

// VerifyPin checks the PIN for a code_verified flow. Login flows end authenticated and get the
// account projection; recovery flows reach pin_verified. On ErrInvalidPin the caller may retry
// with the same token.
func (m *Machine) VerifyPin(ctx context.Context, token, pinDigest string) (_ *domain.Result, err error) {
	flow, err := m.parse(token)
	if err != nil {
		return nil, err
	}
	ctx, span := m.start(ctx, "auth.VerifyPin", flow.Username)
	defer func() { endSpan(span, err) }()

	next, err := domain.Next(flow.Purpose, flow.State, domain.StepPin)
	if err != nil {
		return nil, ErrInvalidFlowState
	}
	a, err := m.accounts.GetByUsername(ctx, flow.Username)
	if err != nil {
		return nil, err
	}
	if err := m.hasher.Compare(a.PinHash, pinDigest); err != nil {
		m.logEvent(ctx, failureEvent(flow.Purpose), flow.Username, map[string]string{"step": "pin"})
		return nil, ErrInvalidPin
	}
	res, err := m.issue(flow.Username, flow.Purpose, next)
	if err != nil {
		return nil, err
	}
	if flow.Purpose == mfadomain.PurposeLogin {
		res.Account = a.Project()
		m.logEvent(ctx, eventdomain.EventLoginComplete, flow.Username, nil)
	} else {
		m.logEvent(ctx, eventdomain.EventRecoveryPin, flow.Username, nil)
	}
	return res, nil
}

// BeginRecovery starts password recovery when username and email belong to the same account.
// It sends a recovery code and returns an identity_matched token.
func (m *Machine) BeginRecovery(ctx context.Context, username, email string) (_ *domain.Result, err error) {
	ctx, span := m.start(ctx, "auth.BeginRecovery", username)
	defer func() { endSpan(span, err) }()

	a, err := m.accounts.GetByUsername(ctx, username)
	if errors.Is(err, accountrepo.ErrNotFound) {
		m.logEvent(ctx, eventdomain.EventRecoveryFailure, username, map[string]string{"step": "identity"})
		return nil, ErrInvalidCredential
	}
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(strings.TrimSpace(email), a.Email) {
		m.logEvent(ctx, eventdomain.EventRecoveryFailure, username, map[string]string{"step": "identity"})
		return nil, ErrInvalidCredential
	}
	if _, err := m.codes.Issue(ctx, a.Username, a.Email, mfadomain.PurposeRecovery); err != nil {
		return nil, err
	}
	res, err := m.issue(a.Username, mfadomain.PurposeRecovery, domain.StateIdentityMatched)
	if err != nil {
		return nil, err
	}
	m.logEvent(ctx, eventdomain.EventRecoveryStart, a.Username, nil)
	return res, nil
}

// ResetPassword replaces the password of a pin_verified recovery flow. The token is spent even
// though it has not expired; a second reset with it fails with ErrInvalidFlowState. username,
// when not empty, must match the token subject. No session is created.
func (m *Machine) ResetPassword(ctx context.Context, token, username, newPasswordDigest string) (_ *domain.Result, err error) {
	flow, err := m.parse(token)
	if err != nil {
		return nil, err
	}
	ctx, span := m.start(ctx, "auth.ResetPassword", flow.Username)
	defer func() { endSpan(span, err) }()

	next, err := domain.Next(flow.Purpose, flow.State, domain.StepReset)
	if err != nil {
		return nil, ErrInvalidFlowState
	}
	if username != "" && username != flow.Username {
		return nil, ErrInvalidFlowState
	}
	hash, err := m.hash(newPasswordDigest)
	if err != nil {
		return nil, err
	}
	if !m.reserve(flow) {
		return nil, ErrInvalidFlowState
	}
	_, err = m.accounts.Mutate(ctx, flow.Username, func(a *accountdomain.Account) error {
		a.PasswordHash = hash
		return nil
	})
	if err != nil {
		m.release(flow.JTI)
		return nil, err
	}
	m.logEvent(ctx, eventdomain.EventPasswordReset, flow.Username, nil)
	return &domain.Result{State: next}, nil
}

// Flow verifies token and returns its contents without advancing it.
func (m *Machine) Flow(token string) (*domain.Flow, error) {
	return m.parse(token)
}

func (m *Machine) hash(digest string) (string, error) {
	h, err := m.hasher.Hash(digest)
	if errors.Is(err, security.ErrInvalidSecret) {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return h, err
}

func (m *Machine) issue(username string, purpose mfadomain.Purpose, state domain.State) (*domain.Result, error) {
	token, _, exp, err := m.tokens.IssueFlow(username, string(purpose), string(state))
	if err != nil {
		return nil, err
	}
	return &domain.Result{Token: token, State: state, ExpiresAt: exp}, nil
}

func (m *Machine) parse(token string) (*domain.Flow, error) {
	if token == "" {
		return nil, ErrInvalidFlowState
	}
	claims, err := m.tokens.ParseFlow(token)
	if err != nil {
		return nil, ErrInvalidFlowState
	}
	purpose := mfadomain.Purpose(claims.Purpose)
	if !purpose.Valid() || claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, ErrInvalidFlowState
	}
	f := &domain.Flow{
		Username:  claims.Subject,
		Purpose:   purpose,
		State:     domain.State(claims.State),
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if m.isConsumed(f.JTI) {
		return nil, ErrInvalidFlowState
	}
	return f, nil
}

func (m *Machine) isConsumed(jti string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.consumed[jti]
	return ok
}

// reserve marks the token as spent. Returns false if it already was. Expired entries are pruned;
// an expired token fails signature checks on its own.
func (m *Machine) reserve(f *domain.Flow) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.nowF()
	for jti, exp := range m.consumed {
		if now.After(exp) {
			delete(m.consumed, jti)
		}
	}
	if _, ok := m.consumed[f.JTI]; ok {
		return false
	}
	m.consumed[f.JTI] = f.ExpiresAt
	return true
}

func (m *Machine) release(jti string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.consumed, jti)
}

func (m *Machine) logEvent(ctx context.Context, eventType, username string, metadata map[string]string) {
	if m.audit != nil {
		m.audit.LogEvent(ctx, eventType, username, metadata)
	}
}

func (m *Machine) start(ctx context.Context, name, username string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attribute.String("smartbanker.username", username)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func isCodeError(err error) bool {
	return errors.Is(err, mfa.ErrChallengeNotFound) ||
		errors.Is(err, mfa.ErrChallengeExpired) ||
		errors.Is(err, mfa.ErrChallengeInvalid)
}

func failureEvent(purpose mfadomain.Purpose) string {
	if purpose == mfadomain.PurposeRecovery {
		return eventdomain.EventRecoveryFailure
	}
	return eventdomain.EventLoginFailure
}
