// Package token issues and checks the signed session tokens the demo
// gateway hands out after a successful captcha verification.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid session token")

type Claims struct {
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

type Service struct {
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

func NewService(signingKey string, ttl time.Duration) Service {
	return Service{
		signingKey: []byte(signingKey),
		ttl:        ttl,
		now:        time.Now,
	}
}

// Issue signs an HS256 token for the given session id.
func (s *Service) Issue(sessionID string) (string, error) {
	claims := Claims{
		SID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(s.now()),
			ExpiresAt: jwt.NewNumericDate(s.now().Add(s.ttl)),
		},
	}

	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return tokenStr, nil
}

// Check verifies a session token and returns its claims.
func (s *Service) Check(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil {
		return nil, fmt.Errorf("failed to parse session token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
