package service

import (
	"context"
	"errors"
	"testing"

	"github.com/modsync/server/internal/apperror"
	"github.com/modsync/server/internal/auth"
)

func TestLoginWithDiscord_IssuesWorkingPair(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.auth.LoginWithDiscord(context.Background(), &auth.DiscordUser{
		ID:         "424242",
		Username:   "gamer",
		GlobalName: "Gamer Display",
	})
	if err != nil {
		t.Fatalf("LoginWithDiscord() error = %v", err)
	}

	if res.User.ID == "" {
		t.Error("login should assign an internal user id")
	}
	if res.User.Name != "Gamer Display" {
		t.Errorf("Name = %q, want the global display name", res.User.Name)
	}
	if res.Tokens.AccessToken == "" || res.Tokens.RefreshToken == "" {
		t.Fatal("login should return a complete token pair")
	}

	// The refresh token must be redeemable for the same user.
	pair, err := env.auth.Redeem(context.Background(), res.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Redeem() error = %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("redemption should return a complete token pair")
	}
}

func TestLoginWithDiscord_SecondLoginSameAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.auth.LoginWithDiscord(ctx, &auth.DiscordUser{ID: "424242", Username: "gamer"})
	if err != nil {
		t.Fatalf("LoginWithDiscord() error = %v", err)
	}
	second, err := env.auth.LoginWithDiscord(ctx, &auth.DiscordUser{ID: "424242", Username: "renamed"})
	if err != nil {
		t.Fatalf("LoginWithDiscord() error = %v", err)
	}

	if second.User.ID != first.User.ID {
		t.Errorf("re-login changed internal id: %q vs %q", second.User.ID, first.User.ID)
	}
	if second.User.Name != "renamed" {
		t.Errorf("Name = %q, want refreshed name", second.User.Name)
	}
}

// Each redemption invalidates the presented value and yields a new one,
// forming a chain. Every link works exactly once.
func TestRedeem_RotationChain(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.auth.LoginWithDiscord(ctx, &auth.DiscordUser{ID: "424242", Username: "gamer"})
	if err != nil {
		t.Fatalf("LoginWithDiscord() error = %v", err)
	}

	current := res.Tokens.RefreshToken
	seen := map[string]bool{current: true}

	for i := 0; i < 4; i++ {
		pair, err := env.auth.Redeem(ctx, current)
		if err != nil {
			t.Fatalf("Redeem() link %d error = %v", i, err)
		}
		if seen[pair.RefreshToken] {
			t.Fatalf("Redeem() link %d returned a previously seen refresh value", i)
		}
		seen[pair.RefreshToken] = true
		current = pair.RefreshToken
	}
}

func TestRedeem_ReplayFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.auth.LoginWithDiscord(ctx, &auth.DiscordUser{ID: "424242", Username: "gamer"})
	if err != nil {
		t.Fatalf("LoginWithDiscord() error = %v", err)
	}

	if _, err := env.auth.Redeem(ctx, res.Tokens.RefreshToken); err != nil {
		t.Fatalf("first Redeem() error = %v", err)
	}

	_, err = env.auth.Redeem(ctx, res.Tokens.RefreshToken)
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("replayed Redeem() error = %v, want ErrUnauthorized", err)
	}
}

func TestRedeem_FabricatedValueFails(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.auth.Redeem(context.Background(), "never-issued-value")
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("Redeem() error = %v, want ErrUnauthorized", err)
	}
}

func TestIssue_AccessTokenCarriesUserID(t *testing.T) {
	env := newTestEnv(t)
	user := env.login(t, "424242", "gamer")

	pair, err := env.auth.Issue(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	got, err := env.auth.tokens.Validate(pair.AccessToken)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got != user.ID {
		t.Errorf("access token subject = %q, want %q", got, user.ID)
	}
}
