// Package service contains the business logic layer: handlers parse HTTP
// and delegate here; this layer enforces the rules and talks to the
// repositories and the blob store. Nothing in this package knows about
// HTTP, and nothing below it knows about business rules.
package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/modsync/server/internal/auth"
	"github.com/modsync/server/internal/model"
	"github.com/modsync/server/internal/repository"
)

// AuthService owns the credential lifecycle: it turns a Discord identity
// into a local account plus an access/refresh pair, verifies access
// tokens, and rotates refresh tokens.
//
// Refresh tokens are opaque 256-bit random values. Only their SHA-256
// hash is stored, so a leaked ledger cannot be replayed. Redemption is
// single-use: the ledger consumes the old hash and records the successor
// in one atomic step, which is what makes a stolen-and-replayed refresh
// token detectable.
type AuthService struct {
	users   repository.UserRepository
	refresh repository.RefreshTokenRepository
	tokens  *auth.TokenService
	logger  *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	refresh repository.RefreshTokenRepository,
	tokens *auth.TokenService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:   users,
		refresh: refresh,
		tokens:  tokens,
		logger:  logger,
	}
}

// TokenPair is what every successful login or refresh redemption returns.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResult bundles the authenticated user and their fresh token pair.
type AuthResult struct {
	User   *model.User
	Tokens TokenPair
}

// LoginWithDiscord completes a login: it upserts the user from their
// Discord identity (create on first login, refresh name/avatar after)
// and issues a new token pair.
func (s *AuthService) LoginWithDiscord(ctx context.Context, du *auth.DiscordUser) (*AuthResult, error) {
	if du == nil {
		return nil, fmt.Errorf("service/auth: Discord user must not be nil")
	}

	user := &model.User{
		DiscordID: du.ID,
		Name:      du.DisplayName(),
		AvatarURL: du.Avatar,
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (discordID=%s): %w", du.ID, err)
	}

	pair, err := s.Issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user authenticated via Discord",
		slog.String("userID", user.ID),
		slog.String("name", user.Name),
	)

	return &AuthResult{User: user, Tokens: pair}, nil
}

// Issue mints a token pair for the given user: a signed access token
// valid for auth.AccessTokenTTL and an opaque refresh value recorded in
// the ledger.
func (s *AuthService) Issue(ctx context.Context, userID string) (TokenPair, error) {
	access, err := s.tokens.Generate(userID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("service/auth: generating access token for user %s: %w", userID, err)
	}

	refresh := newRefreshValue()
	if err := s.refresh.Insert(ctx, hashRefreshValue(refresh), userID); err != nil {
		return TokenPair{}, fmt.Errorf("service/auth: recording refresh token for user %s: %w", userID, err)
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Redeem exchanges a refresh value for a new token pair. The presented
// value becomes permanently unusable the moment this succeeds; presenting
// it again — or presenting a value that never existed — fails with the
// same authorization error either way.
func (s *AuthService) Redeem(ctx context.Context, refreshValue string) (TokenPair, error) {
	next := newRefreshValue()

	userID, err := s.refresh.Redeem(ctx, hashRefreshValue(refreshValue), hashRefreshValue(next))
	if err != nil {
		return TokenPair{}, err
	}

	access, err := s.tokens.Generate(userID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("service/auth: generating access token for user %s: %w", userID, err)
	}

	s.logger.Info("refresh token redeemed", slog.String("userID", userID))

	return TokenPair{AccessToken: access, RefreshToken: next}, nil
}

// GetUserByID returns the user for the given internal ID. Used by /api/me
// after the middleware extracts the id from the access token.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/auth: user ID must not be empty")
	}
	return s.users.GetByID(ctx, id)
}

// newRefreshValue returns 32 bytes from crypto/rand, URL-safe encoded.
func newRefreshValue() string {
	buf := make([]byte, 32)
	// crypto/rand.Read never fails on supported platforms
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("service/auth: reading random bytes: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// hashRefreshValue maps a refresh value to its ledger key.
func hashRefreshValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
