// Package identity resolves the caller from a bearer token issued by the
// external identity provider. The service only verifies tokens; Issue
// exists for operators and tests.
package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "eventpass/pkg/domain"
	dErrors "eventpass/pkg/domain-errors"
)

// Identity is the authenticated registrant.
type Identity struct {
	ID    id.IdentityID
	Email string
}

// Claims are the access token claims this service reads.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenService signs and validates HS256 identity tokens.
type TokenService struct {
	signingKey []byte
	issuer     string
	audience   string
	clock      func() time.Time
}

func NewTokenService(signingKey, issuer, audience string) *TokenService {
	return &TokenService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		clock:      time.Now,
	}
}

// Issue signs a token for who, valid for expiresIn.
func (s *TokenService) Issue(who Identity, expiresIn time.Duration) (string, error) {
	now := s.clock()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email: who.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   who.ID.String(),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
	})
	return token.SignedString(s.signingKey)
}

// Validate verifies signature, issuer, audience and expiry, and returns the
// identity named by the subject claim.
func (s *TokenService) Validate(tokenString string) (Identity, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock),
	)
	var claims Claims
	if _, err := parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return s.signingKey, nil
	}); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return Identity{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	identityID, err := id.ParseIdentityID(claims.Subject)
	if err != nil {
		return Identity{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject")
	}
	return Identity{ID: identityID, Email: claims.Email}, nil
}
