// Package auth protects the mutating HTTP endpoints: an operator logs
// in with a password and gets a short-lived JWT back.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// OperatorClaims is the data stored inside an operator token.
type OperatorClaims struct {
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}

// Tokens issues and validates operator JWTs. The signing secret comes
// from the gateway configuration.
type Tokens struct {
	secret   []byte
	lifetime time.Duration
}

func NewTokens(secret string, lifetime time.Duration) Tokens {
	return Tokens{secret: []byte(secret), lifetime: lifetime}
}

// Generate creates a signed token for one operator.
func (t Tokens) Generate(operator string) (string, error) {
	now := time.Now()
	claims := &OperatorClaims{
		Operator: operator,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.lifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "mini-base",
		},
	}

	// HS256, HMAC with SHA256.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Validate parses the token, checks its signature and expiration and
// returns the claims.
func (t Tokens) Validate(tokenString string) (*OperatorClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &OperatorClaims{}, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*OperatorClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}
