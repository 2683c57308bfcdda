package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTLs. Access tokens are revocation-blind, so they stay short;
// the refresh token is the durable credential and its validity is additionally
// gated by a server-stored hash.
const (
	DefaultAccessTokenTTL  = 1 * time.Hour
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Token use values carried in the "use" claim. A refresh token must never be
// accepted where an access token is expected and vice versa.
const (
	UseAccess  = "access"
	UseRefresh = "refresh"
)

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrUse         = errors.New("jwtx: token use mismatch")
)

// Claims are the claims embedded in both halves of a session pair. Keeping
// changes additive preserves compatibility with tokens already in the wild.
type Claims struct {
	jwt.RegisteredClaims

	// TokenUse distinguishes access tokens from refresh tokens.
	TokenUse string `json:"use,omitempty"`
}

// NewClaims builds minimally-correct claims for a subject.
func NewClaims(subject, use string, ttl time.Duration, issuer string, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		TokenUse: use,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim. The jti is
// what makes two otherwise-identical token mints distinct strings.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateUse checks the "use" claim against the expected token use.
func (c *Claims) ValidateUse(expected string) error {
	if c.TokenUse != expected {
		return ErrUse
	}
	return nil
}

// ValidateIssuer checks the issuer when one is expected.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't used
// before it becomes valid (nbf).
func (c *Claims) ValidateExpiry() error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}
	return nil
}
