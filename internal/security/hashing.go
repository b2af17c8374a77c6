package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidSecret is returned by Hash for an empty secret or one longer than bcrypt accepts.
var ErrInvalidSecret = errors.New("invalid secret")

// maxSecretLen is bcrypt's input limit. A hex client digest is 64 bytes.
const maxSecretLen = 72

// Hasher re-hashes the client digests of passwords and PINs with bcrypt before they are
// persisted, so a leaked store does not hand out replayable digests. Callers must not log
// or persist the inbound digest.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher with the given bcrypt cost (4–31). Cost 12 is a
// reasonable default for interactive login.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	cost = max(cost, bcrypt.MinCost)
	cost = min(cost, bcrypt.MaxCost)
	return &Hasher{Cost: cost}
}

// Hash produces a salted bcrypt hash of the client digest.
func (h *Hasher) Hash(digest string) (string, error) {
	if digest == "" || len(digest) > maxSecretLen {
		return "", ErrInvalidSecret
	}
	b, err := bcrypt.GenerateFromPassword([]byte(digest), h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare verifies digest against the stored hash in constant time. Returns nil if they
// match; returns an error (including bcrypt.ErrMismatchedHashAndPassword) otherwise.
func (h *Hasher) Compare(hash, digest string) error {
	if digest == "" || len(digest) > maxSecretLen {
		return ErrInvalidSecret
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(digest))
}
