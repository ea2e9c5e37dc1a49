// Package auth verifies the signed token a client presents at connection
// time and resolves it to a user identity.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrAuthentication rejects a connection outright: missing, malformed or
// expired credential.
var ErrAuthentication = errors.New("authentication error")

// Identity is the verified user behind a connection.
type Identity struct {
	UserID      string
	DisplayName string
}

// Verifier resolves a handshake token to an identity.
type Verifier interface {
	Verify(token string) (*Identity, error)
}

type claims struct {
	DisplayName string `json:"displayName"`
	jwt.RegisteredClaims
}

// JWTVerifier verifies HMAC-signed tokens.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier NewJWTVerifier
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify Verify
func (v *JWTVerifier) Verify(token string) (*Identity, error) {
	if token == "" {
		return nil, ErrAuthentication
	}
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, ErrAuthentication
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid || c.Subject == "" {
		return nil, ErrAuthentication
	}
	return &Identity{UserID: c.Subject, DisplayName: c.DisplayName}, nil
}

// Sign issues a token for the given identity. Used by the chat client and
// by tests; the production issuer lives with the account service.
func Sign(secret, userID, displayName string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims{
		DisplayName: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString([]byte(secret))
}
