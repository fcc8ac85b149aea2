package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/modsync/server/internal/apperror"
)

const discordAPI = "https://discord.com/api/v10"

// discordEndpoint is Discord's OAuth2 authorization-code endpoint pair.
var discordEndpoint = oauth2.Endpoint{
	AuthURL:  discordAPI + "/oauth2/authorize",
	TokenURL: discordAPI + "/oauth2/token",
}

// DiscordUser is the slice of Discord's authorization info we care about.
// Discord returns a much larger object — we only unmarshal what we need.
type DiscordUser struct {
	ID         string `json:"id"`          // Discord's user ID — stable, never changes
	Username   string `json:"username"`    // unique handle
	GlobalName string `json:"global_name"` // display name (may be empty)
	Avatar     string `json:"avatar"`      // avatar hash (may be empty)
}

// DisplayName returns the user's display name, falling back to the handle
// for accounts that never set one.
func (u *DiscordUser) DisplayName() string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// DiscordProvider wraps golang.org/x/oauth2 for Discord's Authorization
// Code flow. The server only ever asks for the "identify" scope — enough
// to learn who the user is, nothing more.
//
// The code-for-token exchange happens server-to-server using the client
// secret; Discord's tokens never reach the desktop app. The app only ever
// sees our own access/refresh pair.
type DiscordProvider struct {
	config *oauth2.Config
}

// NewDiscordProvider creates a DiscordProvider with the given application
// credentials. callbackURL must exactly match the redirect URI registered
// with the Discord application.
func NewDiscordProvider(clientID, clientSecret, callbackURL string) *DiscordProvider {
	return &DiscordProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"identify"},
			Endpoint:     discordEndpoint,
		},
	}
}

// AuthURL returns the Discord authorization URL the browser is redirected
// to. state is the random CSRF value verified again on callback.
func (p *DiscordProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange completes the OAuth flow: it trades the authorization code for
// a Discord identity by calling the token endpoint and then oauth2/@me.
//
// The caller bounds the whole exchange with ctx; a provider outage or
// timeout surfaces as apperror.ErrUpstream so the desktop app knows the
// failure is retryable.
func (p *DiscordProvider) Exchange(ctx context.Context, code string) (*DiscordUser, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, apperror.Upstream(fmt.Errorf("auth: exchanging OAuth code: %w", err))
	}

	// oauth2.Config.Client returns an *http.Client that attaches the
	// bearer token to every request.
	client := p.config.Client(ctx, oauthToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, discordAPI+"/oauth2/@me", nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building authorization info request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, apperror.Upstream(fmt.Errorf("auth: fetching authorization info: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperror.Upstream(fmt.Errorf("auth: authorization info returned status %d", resp.StatusCode))
	}

	// oauth2/@me nests the user object inside the authorization info.
	var info struct {
		User DiscordUser `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, apperror.Upstream(fmt.Errorf("auth: decoding authorization info: %w", err))
	}

	if info.User.ID == "" {
		return nil, apperror.Upstream(fmt.Errorf("auth: Discord returned an empty user id"))
	}

	return &info.User, nil
}
