package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mfadomain "smartbanker/backend/internal/mfa/domain"
)

func TestNext_LoginPath(t *testing.T) {
	s, err := Next(mfadomain.PurposeLogin, StatePasswordVerified, StepCode)
	require.NoError(t, err)
	assert.Equal(t, StateCodeVerified, s)

	s, err = Next(mfadomain.PurposeLogin, s, StepPin)
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, s)
}

func TestNext_RecoveryPath(t *testing.T) {
	s := StateIdentityMatched
	for _, step := range []Step{StepCode, StepPin, StepReset} {
		var err error
		s, err = Next(mfadomain.PurposeRecovery, s, step)
		require.NoError(t, err)
	}
	assert.Equal(t, StatePasswordReset, s)
}

func TestNext_Rejects(t *testing.T) {
	cases := []struct {
		name    string
		purpose mfadomain.Purpose
		from    State
		step    Step
	}{
		{"pin before code", mfadomain.PurposeLogin, StatePasswordVerified, StepPin},
		{"reset on login flow", mfadomain.PurposeLogin, StateCodeVerified, StepReset},
		{"code twice", mfadomain.PurposeLogin, StateCodeVerified, StepCode},
		{"authenticated is terminal", mfadomain.PurposeLogin, StateAuthenticated, StepPin},
		{"reset before pin", mfadomain.PurposeRecovery, StateCodeVerified, StepReset},
		{"login state on recovery", mfadomain.PurposeRecovery, StatePasswordVerified, StepCode},
		{"reset is terminal", mfadomain.PurposeRecovery, StatePasswordReset, StepReset},
		{"unknown purpose", mfadomain.Purpose("other"), StatePasswordVerified, StepCode},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Next(tc.purpose, tc.from, tc.step)
			assert.ErrorIs(t, err, ErrInvalidTransition)
		})
	}
}
