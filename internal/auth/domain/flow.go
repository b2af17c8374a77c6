// Package domain holds the authentication flow states and the transitions between them.
package domain

import (
	"errors"
	"time"

	accountdomain "smartbanker/backend/internal/account/domain"
	mfadomain "smartbanker/backend/internal/mfa/domain"
)

// State is the position of a caller within a login or recovery flow. It travels inside the
// signed flow token.
type State string

const (
	StatePasswordVerified State = "password_verified"
	StateCodeVerified     State = "code_verified"
	StateAuthenticated    State = "authenticated"
	StateIdentityMatched  State = "identity_matched"
	StatePinVerified      State = "pin_verified"
	StatePasswordReset    State = "password_reset"
)

// Step is the proof a caller presents to move a flow forward.
type Step string

const (
	StepCode  Step = "code"
	StepPin   Step = "pin"
	StepReset Step = "reset"
)

// ErrInvalidTransition is returned by Next when step is not allowed from the given state.
var ErrInvalidTransition = errors.New("invalid flow transition")

var transitions = map[mfadomain.Purpose]map[State]map[Step]State{
	mfadomain.PurposeLogin: {
		StatePasswordVerified: {StepCode: StateCodeVerified},
		StateCodeVerified:     {StepPin: StateAuthenticated},
	},
	mfadomain.PurposeRecovery: {
		StateIdentityMatched: {StepCode: StateCodeVerified},
		StateCodeVerified:    {StepPin: StatePinVerified},
		StatePinVerified:     {StepReset: StatePasswordReset},
	},
}

// Next returns the state reached by taking step from state within a flow of purpose.
func Next(purpose mfadomain.Purpose, from State, step Step) (State, error) {
	to, ok := transitions[purpose][from][step]
	if !ok {
		return "", ErrInvalidTransition
	}
	return to, nil
}

// Flow is a verified flow token.
type Flow struct {
	Username  string
	Purpose   mfadomain.Purpose
	State     State
	JTI       string
	ExpiresAt time.Time
}

// Result is returned by every step that advances a flow. Token is empty once a flow is finished
// without a follow-up (password reset). Account is set for login steps only.
type Result struct {
	Token     string
	State     State
	ExpiresAt time.Time
	Account   *accountdomain.Projection
}
