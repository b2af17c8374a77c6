package security

import "time"

// NewTestTokenProvider returns a TokenProvider on a fresh ES256 key with a 15 minute TTL.
// For unit tests only.
func NewTestTokenProvider() (*TokenProvider, error) {
	signer, pub, err := GenerateEphemeralKey()
	if err != nil {
		return nil, err
	}
	return NewTokenProvider(signer, pub, "test-issuer", "test-audience", 15*time.Minute)
}

// WithClock replaces the provider's clock. For tests that need to move past token expiry.
func (p *TokenProvider) WithClock(now func() time.Time) *TokenProvider {
	p.nowF = now
	return p
}
