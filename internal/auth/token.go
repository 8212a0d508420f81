// ABOUTME: JWT session token verification and issuance for member requests
// ABOUTME: Tokens are HS256 with the account ID in "sub"; only HS256 is accepted on verify

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// issuer is the "iss" claim stamped on every session token.
const issuer = "missionlink-gateway"

// clockSkew tolerates small differences between the signer and this host.
const clockSkew = 30 * time.Second

// TokenVerifier resolves a session token to the account it was issued for.
type TokenVerifier interface {
	Verify(tokenString string) (accountID string, err error)
}

// TokenIssuer signs new session tokens.
type TokenIssuer interface {
	Generate(accountID string, expiresIn time.Duration) (string, error)
}

// sessionClaims is the payload of a session token.
type sessionClaims struct {
	jwt.RegisteredClaims
}

// JWTVerifier signs and verifies session tokens with one shared secret.
type JWTVerifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTVerifier creates a verifier for the given secret.
func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{
		secret: secret,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithLeeway(clockSkew),
			jwt.WithIssuedAt(),
		),
	}
}

// Verify checks the signature and expiry and returns the "sub" claim.
func (v *JWTVerifier) Verify(tokenString string) (string, error) {
	var claims sessionClaims
	_, err := v.parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrExpiredToken
	case err != nil:
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	return claims.Subject, nil
}

// Generate signs a token for accountID that expires after expiresIn.
func (v *JWTVerifier) Generate(accountID string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := sessionClaims{jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   accountID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
