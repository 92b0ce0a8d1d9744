// Package adminauth gates the registry's admin routes behind a signed
// bearer token. Unlike a paying client's one-shot x402 payment, admin
// access is an operator concern: a long-lived JWT signed with a shared
// secret, presented as a standard Authorization: Bearer header.
package adminauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every way a bearer token can fail to authenticate:
// missing, malformed, wrong signature, or expired.
var ErrInvalidToken = errors.New("adminauth: invalid or expired token")

// Claims is the JWT payload for an admin bearer token.
type Claims struct {
	jwt.RegisteredClaims
	// Operator identifies who the token was issued to, for audit logging.
	Operator string `json:"operator"`
}

// Issuer issues and validates admin bearer tokens against a shared HMAC secret.
type Issuer struct {
	secret []byte
	expiry time.Duration
}

// NewIssuer builds an Issuer with the given HMAC secret and token lifetime.
func NewIssuer(secret []byte, expiry time.Duration) *Issuer {
	return &Issuer{secret: secret, expiry: expiry}
}

// Issue signs a new bearer token naming operator.
func (i *Issuer) Issue(operator string) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operator,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.expiry)),
		},
		Operator: operator,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("adminauth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies tokenString, returning its claims.
func (i *Issuer) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
