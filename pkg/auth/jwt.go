// Package auth issues and verifies the bearer tokens that authenticate
// sync clients, and hashes account passwords.
package auth

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenLifetime is how long an issued token remains valid.
const tokenLifetime = 90 * 24 * time.Hour

// Claims is the JWT payload. DocumentID is carried for wire-format parity
// with the original design but is never consulted for authorization:
// ownership of a document is always re-derived from the store, because an
// account may own more than one document and a token issued at login time
// cannot bind to one correctly.
type Claims struct {
	jwt.RegisteredClaims
	DocumentID int64 `json:"document_id"`
}

// Issuer signs and verifies tokens with a single HMAC secret, matching the
// "base64-encoded string at startup" configuration contract.
type Issuer struct {
	key []byte
}

// NewIssuer decodes secretBase64 into the HMAC key used for both signing
// and verification.
func NewIssuer(secretBase64 string) (*Issuer, error) {
	key, err := base64.StdEncoding.DecodeString(secretBase64)
	if err != nil {
		return nil, fmt.Errorf("decoding JWT secret: %w", err)
	}
	return &Issuer{key: key}, nil
}

// Issue creates a signed token for the given email subject.
func (i *Issuer) Issue(email string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.key)
}

// Verify checks a token's signature and expiry and returns its claims.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.key, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
