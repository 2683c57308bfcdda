package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the smallest signing secret we accept. Anything shorter
// than the HMAC block makes brute force the cheapest attack on the system.
const MinSecretLength = 32

// Signer signs and verifies HS256 tokens with a single shared secret. Both
// halves of a session pair are minted through the same signer; the "use"
// claim is what keeps them apart.
type Signer struct {
	secret []byte
	issuer string
}

// NewSigner builds a Signer from the configured signing secret.
func NewSigner(secret []byte, issuer string) (*Signer, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("jwtx: signing secret must be at least %d bytes", MinSecretLength)
	}
	return &Signer{secret: secret, issuer: issuer}, nil
}

// Issuer returns the issuer claim stamped on minted tokens.
func (s *Signer) Issuer() string { return s.issuer }

// Sign turns claims into a signed compact JWT string.
func (s *Signer) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}

// Verify parses and validates a token string and returns its claims.
// Signature, expiry, nbf, and issuer are all checked; callers that care about
// token use should follow up with ValidateUse.
func (s *Signer) Verify(tokenStr string) (Claims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Claims{}, ErrExpired
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return Claims{}, ErrNotYetValid
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Claims{}, ErrInvalidSig
		default:
			return Claims{}, ErrMalformed
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Claims{}, ErrMalformed
	}

	if err := claims.ValidateIssuer(s.issuer); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateExpiry(); err != nil {
		return Claims{}, err
	}

	return *claims, nil
}
