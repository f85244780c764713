// Package token manages bearer-token issuance and verification for the
// portal API using HS256-signed JWTs.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultTTL = 8 * time.Hour

var (
	// ErrInvalidToken is returned for malformed, mis-signed, or expired tokens.
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Claims are the portal-specific claims carried in every access token.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// Issuer creates and verifies access tokens with a shared HMAC secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithTTL overrides the default token lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(i *Issuer) { i.ttl = ttl }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// NewIssuer creates an Issuer signing with the given secret.
func NewIssuer(secret []byte, opts ...Option) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("token: signing secret must not be empty")
	}
	i := &Issuer{
		secret: secret,
		ttl:    defaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue creates a signed access token for the given principal.
func (i *Issuer) Issue(userID int64, username string, isAdmin bool) (string, error) {
	now := i.now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		IsAdmin:  isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token string, returning its claims.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
