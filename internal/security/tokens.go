package security

import (
	"crypto"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, expired or signed by another key.
	ErrInvalidToken = errors.New("invalid token")
)

// FlowClaims are the claims of a flow token: the subject username plus the step of the
// login or recovery flow it has reached.
type FlowClaims struct {
	jwt.RegisteredClaims
	State   string `json:"state"`
	Purpose string `json:"purpose"`
}

// TokenProvider issues and validates flow tokens using RS256 or ES256 (private/public key).
type TokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	method     jwt.SigningMethod
	issuer     string
	audience   string
	ttl        time.Duration
	nowF       func() time.Time
}

// NewTokenProvider returns a TokenProvider that signs with privateKey and verifies with publicKey.
// issuer and audience are set on every token and required on parse.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, ttl time.Duration) (*TokenProvider, error) {
	var method jwt.SigningMethod
	switch KeyAlg(privateKey.Public()) {
	case "RS256":
		method = jwt.SigningMethodRS256
	case "ES256":
		method = jwt.SigningMethodES256
	default:
		return nil, ErrInvalidKey
	}
	if KeyAlg(publicKey) != method.Alg() {
		return nil, ErrInvalidKey
	}
	return &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		method:     method,
		issuer:     issuer,
		audience:   audience,
		ttl:        ttl,
		nowF:       time.Now,
	}, nil
}

// IssueFlow signs a token for username at the given purpose and state.
// Returns the token, its jti and expiration time.
func (p *TokenProvider) IssueFlow(username, purpose, state string) (token, jti string, expiresAt time.Time, err error) {
	jti, err = generateJTI()
	if err != nil {
		return "", "", time.Time{}, err
	}
	now := p.nowF().UTC()
	expiresAt = now.Add(p.ttl)
	claims := FlowClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   username,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		State:   state,
		Purpose: purpose,
	}
	token, err = jwt.NewWithClaims(p.method, claims).SignedString(p.privateKey)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return token, jti, expiresAt, nil
}

// ParseFlow validates signature, algorithm, expiry, issuer and audience and returns the claims.
// Every failure is reported as ErrInvalidToken.
func (p *TokenProvider) ParseFlow(tokenString string) (*FlowClaims, error) {
	claims := &FlowClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return p.publicKey, nil },
		jwt.WithValidMethods([]string{p.method.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.nowF),
	)
	if err != nil || !token.Valid || claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TTL reports how long issued tokens stay valid.
func (p *TokenProvider) TTL() time.Duration {
	return p.ttl
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
