// Package mfa issues and verifies the one-time codes that guard the second login step and
// password recovery.
package mfa

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"smartbanker/backend/internal/devotp"
	"smartbanker/backend/internal/mfa/domain"
	"smartbanker/backend/internal/mfa/repository"
)

// Sentinel errors for Issue and Verify.
var (
	ErrChallengeNotFound = errors.New("no active code")
	ErrChallengeExpired  = errors.New("code expired")
	ErrChallengeInvalid  = errors.New("invalid code")
	ErrDeliveryFailed    = errors.New("code delivery failed")
)

// Message is what a Sender delivers.
type Message struct {
	Destination string
	Subject     string
	Body        string
}

// Sender delivers a message to its destination (an email address).
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Issuer generates codes, keeps the hash of the single live code per username and hands the
// plaintext to a Sender. Verify consumes a code on success and leaves it in place on a mismatch.
type Issuer struct {
	mu     sync.Mutex
	repo   repository.Repository
	sender Sender
	ttl    time.Duration
	dev    devotp.Store
	nowF   func() time.Time
}

// NewIssuer returns an Issuer. ttl <= 0 uses repository.DefaultChallengeTTL.
func NewIssuer(repo repository.Repository, sender Sender, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = repository.DefaultChallengeTTL
	}
	return &Issuer{repo: repo, sender: sender, ttl: ttl, nowF: time.Now}
}

// WithDevStore makes issued codes readable from store. Dev mode only.
func (i *Issuer) WithDevStore(store devotp.Store) *Issuer {
	i.dev = store
	return i
}

// Issue replaces any live challenge for username with a new one and delivers its code to email.
// If delivery fails the new challenge is removed and ErrDeliveryFailed is returned.
func (i *Issuer) Issue(ctx context.Context, username, email string, purpose domain.Purpose) (*domain.Challenge, error) {
	if !purpose.Valid() {
		return nil, fmt.Errorf("mfa: unknown purpose %q", purpose)
	}
	code, err := GenerateOTP()
	if err != nil {
		return nil, err
	}
	now := i.nowF().UTC()
	c := &domain.Challenge{
		ID:        uuid.New().String(),
		Username:  username,
		Purpose:   purpose,
		CodeHash:  HashOTP(code),
		IssuedAt:  now,
		ExpiresAt: now.Add(i.ttl),
	}

	i.mu.Lock()
	err = i.repo.Put(ctx, c)
	i.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if i.dev != nil {
		i.dev.Put(ctx, username, code, c.ExpiresAt)
	}

	if err := i.sender.Send(ctx, i.message(email, code, purpose)); err != nil {
		i.mu.Lock()
		_ = i.repo.Delete(ctx, username, c.ID)
		i.mu.Unlock()
		if i.dev != nil {
			i.dev.Delete(ctx, username)
		}
		return nil, oops.
			Code("CHALLENGE_DELIVERY").
			In("mfa").
			With("purpose", string(purpose)).
			Wrap(fmt.Errorf("%w: %w", ErrDeliveryFailed, err))
	}
	return c, nil
}

// Verify checks code against the live challenge for username and purpose.
// A challenge for another purpose counts as absent. An expired challenge is discarded.
// A wrong code leaves the challenge usable until it expires.
func (i *Issuer) Verify(ctx context.Context, username string, purpose domain.Purpose, code string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	c, err := i.repo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if c == nil || c.Purpose != purpose {
		return ErrChallengeNotFound
	}
	if c.Expired(i.nowF()) {
		_ = i.repo.Delete(ctx, username, c.ID)
		return ErrChallengeExpired
	}
	if !OTPEqual(code, c.CodeHash) {
		return ErrChallengeInvalid
	}
	if err := i.repo.Delete(ctx, username, c.ID); err != nil {
		return err
	}
	if i.dev != nil {
		i.dev.Delete(ctx, username)
	}
	return nil
}

// TTL reports how long issued codes stay valid.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

func (i *Issuer) message(email, code string, purpose domain.Purpose) Message {
	validity := fmt.Sprintf("This OTP is valid for %s. Do not share it with anyone.", describe(i.ttl))
	if purpose == domain.PurposeRecovery {
		return Message{
			Destination: email,
			Subject:     "SmartBanker Password Recovery",
			Body:        fmt.Sprintf("Your OTP for password recovery is: %s. %s", code, validity),
		}
	}
	return Message{
		Destination: email,
		Subject:     "SmartBanker",
		Body:        fmt.Sprintf("Your OTP for SmartBanker login is: %s. %s", code, validity),
	}
}

func describe(d time.Duration) string {
	switch {
	case d == time.Minute:
		return "1 minute"
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	default:
		return d.String()
	}
}
