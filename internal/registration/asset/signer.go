package asset

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"eventpass/pkg/platform/sentinel"
)

const tokenAudience = "eventpass-assets"

// Signer issues and verifies capability tokens for object keys.
type Signer struct {
	key   []byte
	ttl   time.Duration
	clock func() time.Time
}

func NewSigner(key string, ttl time.Duration, clock func() time.Time) *Signer {
	if clock == nil {
		clock = time.Now
	}
	return &Signer{key: []byte(key), ttl: ttl, clock: clock}
}

// Sign returns a token for key that expires after the signer's TTL.
func (s *Signer) Sign(key string) (string, time.Time, error) {
	now := s.clock()
	expiresAt := now.Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   key,
		Audience:  jwt.ClaimStrings{tokenAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign asset token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify returns the object key a token grants access to.
func (s *Signer) Verify(token string) (string, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock),
	)
	var claims jwt.RegisteredClaims
	_, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", sentinel.ErrExpired
		}
		return "", fmt.Errorf("verify asset token: %w", err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("verify asset token: missing subject")
	}
	return claims.Subject, nil
}
