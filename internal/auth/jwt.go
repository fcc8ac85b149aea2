// Package auth provides access-token signing, the Discord OAuth provider,
// and the request middleware that authenticates API calls.
//
// AUTHENTICATION FLOW OVERVIEW:
// 1. The desktop app opens /auth/login → browser redirected to Discord
// 2. Discord calls back /auth/callback with a code
// 3. Server exchanges the code for the Discord identity, upserts the user
// 4. Server issues a signed access token plus a single-use refresh token
//    and hands both to the desktop app via its loopback redirect
// 5. On API calls, middleware validates the Bearer access token; when it
//    expires, the app redeems its refresh token at POST /auth/token
//
// Access tokens are JWTs (HS256): self-contained and verifiable without a
// database lookup. Refresh tokens are opaque single-use values tracked by
// the refresh ledger — see internal/service.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/modsync/server/internal/apperror"
)

// AccessTokenTTL is the lifetime of an access token. Verification fails
// closed the moment a token is older than this.
const AccessTokenTTL = 30 * time.Minute

const issuer = "modsync"

// TokenService signs and verifies JWT access tokens.
//
// It holds the HMAC secret used for both operations. The secret is passed
// in at construction — there is no ambient global signing key.
type TokenService struct {
	secret []byte

	// now is swappable in tests to probe expiry behavior.
	now func() time.Time
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret), now: time.Now}, nil
}

type claims struct {
	jwt.RegisteredClaims
}

// Generate creates a signed access token for the given userID, expiring
// AccessTokenTTL from now. The user's internal id goes in the "sub" claim.
func (s *TokenService) Generate(userID string) (string, error) {
	now := s.now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenTTL)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies an access token and returns the userID from
// its subject claim.
//
// Signature, expiry, issuer, and algorithm (HS256 only — prevents
// algorithm-confusion attacks) are all checked. Every failure comes back
// as the same apperror.Unauthorized so callers cannot probe which check
// failed.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	if err != nil {
		return "", apperror.Unauthorized("Token is invalid or expired")
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid || c.Subject == "" {
		return "", apperror.Unauthorized("Token is invalid or expired")
	}

	return c.Subject, nil
}
