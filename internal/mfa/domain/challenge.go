package domain

import "time"

// Purpose scopes a challenge to the flow that requested it.
type Purpose string

const (
	PurposeLogin    Purpose = "login"
	PurposeRecovery Purpose = "recovery"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	return p == PurposeLogin || p == PurposeRecovery
}

// Challenge is the single live one-time code for a username. It is held in memory only.
type Challenge struct {
	ID        string
	Username  string
	Purpose   Purpose
	CodeHash  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the challenge is no longer usable at now.
func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
