package mfa

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"smartbanker/backend/internal/devotp"
	"smartbanker/backend/internal/mfa/domain"
	"smartbanker/backend/internal/mfa/repository"
)

type captureSender struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (s *captureSender) Send(ctx context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

var codePattern = regexp.MustCompile(`is: (\d{6})\.`)

func (s *captureSender) lastCode(t *testing.T) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.sent)
	m := codePattern.FindStringSubmatch(s.sent[len(s.sent)-1].Body)
	require.Len(t, m, 2, "no code in %q", s.sent[len(s.sent)-1].Body)
	return m[1]
}

func newTestIssuer() (*Issuer, *captureSender) {
	sender := &captureSender{}
	return NewIssuer(repository.NewMemoryRepository(), sender, 5*time.Minute), sender
}

func TestIssuer_IssueDeliversMessage(t *testing.T) {
	iss, sender := newTestIssuer()
	c, err := iss.Issue(context.Background(), "alice", "a@x.com", domain.PurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, "alice", c.Username)
	assert.Equal(t, 5*time.Minute, c.ExpiresAt.Sub(c.IssuedAt))

	code := sender.lastCode(t)
	assert.NotEqual(t, code, c.CodeHash, "only the hash is kept")
	msg := sender.sent[0]
	assert.Equal(t, "a@x.com", msg.Destination)
	assert.Equal(t, "SmartBanker", msg.Subject)
	assert.Equal(t, "Your OTP for SmartBanker login is: "+code+". This OTP is valid for 5 minutes. Do not share it with anyone.", msg.Body)
}

func TestIssuer_RecoveryMessage(t *testing.T) {
	iss, sender := newTestIssuer()
	_, err := iss.Issue(context.Background(), "alice", "a@x.com", domain.PurposeRecovery)
	require.NoError(t, err)
	assert.Equal(t, "SmartBanker Password Recovery", sender.sent[0].Subject)
	assert.Contains(t, sender.sent[0].Body, "Your OTP for password recovery is: ")
}

func TestIssuer_CodeIsSingleUse(t *testing.T) {
	iss, sender := newTestIssuer()
	ctx := context.Background()
	_, err := iss.Issue(ctx, "alice", "a@x.com", domain.PurposeLogin)
	require.NoError(t, err)
	code := sender.lastCode(t)

	require.NoError(t, iss.Verify(ctx, "alice", domain.PurposeLogin, code))
	assert.ErrorIs(t, iss.Verify(ctx, "alice", domain.PurposeLogin, code), ErrChallengeNotFound)
}

func TestIssuer_WrongCodeAllowsRetry(t *testing.T) {
	iss, sender := newTestIssuer()
	ctx := context.Background()
	_, err := iss.Issue(ctx, "alice", "a@x.com", domain.PurposeLogin)
	require.NoError(t, err)
	code := sender.lastCode(t)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	assert.ErrorIs(t, iss.Verify(ctx, "alice", domain.PurposeLogin, wrong), ErrChallengeInvalid)
	assert.NoError(t, iss.Verify(ctx, "alice", domain.PurposeLogin, code))
}

func TestIssuer_ExpiredCode(t *testing.T) {
	iss, sender := newTestIssuer()
	ctx := context.Background()
	now := time.Now()
	iss.nowF = func() time.Time { return now }
	_, err := iss.Issue(ctx, "alice", "a@x.com", domain.PurposeLogin)
	require.NoError(t, err)
	code := sender.lastCode(t)

	iss.nowF = func() time.Time { return now.Add(5*time.Minute + time.Second) }
	assert.ErrorIs(t, iss.Verify(ctx, "alice", domain.PurposeLogin, code), ErrChallengeExpired)
	assert.ErrorIs(t, iss.Verify(ctx, "alice", domain.PurposeLogin, code), ErrChallengeNotFound)
}

func TestIssuer_PurposeMismatch(t *testing.T) {
	iss, sender := newTestIssuer()
	ctx := context.Background()
	_, err := iss.Issue(ctx, "alice", "a@x.com", domain.PurposeRecovery)
	require.NoError(t, err)
	code := sender.lastCode(t)

	assert.ErrorIs(t, iss.Verify(ctx, "alice", domain.PurposeLogin, code), ErrChallengeNotFound)
	assert.NoError(t, iss.Verify(ctx, "alice", domain.PurposeRecovery, code))
}

func TestIssuer_ReissueInvalidatesPrevious(t *testing.T) {
	iss, sender := newTestIssuer()
	ctx := context.Background()
	_, err := iss.Issue(ctx, "alice", "a@x.com", domain.PurposeLogin)
	require.NoError(t, err)
	first := sender.lastCode(t)
	_, err = iss.Issue(ctx, "alice", "a@x.com", domain.PurposeLogin)
	require.NoError(t, err)
	second := sender.lastCode(t)

	if first != second {
		assert.ErrorIs(t, iss.Verify(ctx, "alice", domain.PurposeLogin, first), ErrChallengeInvalid)
	}
	assert.NoError(t, iss.Verify(ctx, "alice", domain.PurposeLogin, second))
}

func TestIssuer_DeliveryFailureRemovesChallenge(t *testing.T) {
	iss, sender := newTestIssuer()
	sender.err = errors.New("smtp down")
	dev := devotp.NewMemoryStore()
	iss.WithDevStore(dev)
	ctx := context.Background()

	_, err := iss.Issue(ctx, "alice", "a@x.com", domain.PurposeLogin)
	assert.ErrorIs(t, err, ErrDeliveryFailed)
	assert.ErrorIs(t, iss.Verify(ctx, "alice", domain.PurposeLogin, "123456"), ErrChallengeNotFound)
	_, ok := dev.Get(ctx, "alice")
	assert.False(t, ok)
}

func TestIssuer_DevStoreMirrorsCode(t *testing.T) {
	iss, sender := newTestIssuer()
	dev := devotp.NewMemoryStore()
	iss.WithDevStore(dev)
	ctx := context.Background()

	_, err := iss.Issue(ctx, "alice", "a@x.com", domain.PurposeLogin)
	require.NoError(t, err)
	otp, ok := dev.Get(ctx, "alice")
	require.True(t, ok)
	assert.Equal(t, sender.lastCode(t), otp)

	require.NoError(t, iss.Verify(ctx, "alice", domain.PurposeLogin, otp))
	_, ok = dev.Get(ctx, "alice")
	assert.False(t, ok, "consumed code is dropped from the dev store")
}

func TestIssuer_ConcurrentUsers(t *testing.T) {
	defer goleak.VerifyNone(t)
	iss, _ := newTestIssuer()
	ctx := context.Background()
	var wg sync.WaitGroup
	for _, user := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			_, err := iss.Issue(ctx, user, user+"@x.com", domain.PurposeLogin)
			assert.NoError(t, err)
		}(user)
	}
	wg.Wait()
	for _, user := range []string{"a", "h"} {
		c, err := iss.repo.GetByUsername(ctx, user)
		require.NoError(t, err)
		assert.NotNil(t, c)
	}
}

func TestIssuer_UnknownPurpose(t *testing.T) {
	iss, _ := newTestIssuer()
	_, err := iss.Issue(context.Background(), "alice", "a@x.com", domain.Purpose("other"))
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "1 minute", describe(time.Minute))
	assert.Equal(t, "5 minutes", describe(5*time.Minute))
	assert.Equal(t, "1m30s", describe(90*time.Second))
}
