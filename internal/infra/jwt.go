// README: Bearer-token verifier. Token issuance lives in the auth service;
// this side only validates signatures and extracts the caller descriptor.
package infra

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

// Token holds the verified claims used by downstream middleware.
type Token struct {
	UID  string
	Role string
}

// TokenVerifier verifies a raw bearer token string and returns token data.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*Token, error)
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type jwtVerifier struct {
	key []byte
}

// NewJWTVerifier creates a TokenVerifier for HS256 tokens signed with key.
func NewJWTVerifier(key string) TokenVerifier {
	return &jwtVerifier{key: []byte(key)}
}

func (v *jwtVerifier) Verify(_ context.Context, raw string) (*Token, error) {
	token, err := jwt.ParseWithClaims(raw, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid || c.Subject == "" {
		return nil, fmt.Errorf("invalid token")
	}
	return &Token{UID: c.Subject, Role: c.Role}, nil
}
