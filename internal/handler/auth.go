// Package handler implements the HTTP layer: request parsing, response
// writing, and nothing else. All rules live in internal/service.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/xid"

	"github.com/modsync/server/internal/auth"
	"github.com/modsync/server/internal/model"
	"github.com/modsync/server/internal/service"
)

// exchangeTimeout bounds the round trips to the identity provider during
// a callback. A slow provider fails the login rather than hanging it.
const exchangeTimeout = 10 * time.Second

// AuthHandler manages the Discord OAuth login flow and token endpoints.
//
//	GET  /auth/login    → redirect the browser to Discord's consent page
//	GET  /auth/callback → receive the code, mint a token pair, hand it to
//	                      the desktop app via its loopback redirect
//	POST /auth/token    → redeem a refresh token for a new pair
//	GET  /api/me        → the authenticated user and their profiles
type AuthHandler struct {
	discord  *auth.DiscordProvider
	authSvc  *service.AuthService
	profiles *service.ProfileService
	// clientRedirectURL is the desktop app's loopback listener that
	// receives the tokens after a completed login.
	clientRedirectURL string
	logger            *slog.Logger
}

func NewAuthHandler(
	discord *auth.DiscordProvider,
	authSvc *service.AuthService,
	profiles *service.ProfileService,
	clientRedirectURL string,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		discord:           discord,
		authSvc:           authSvc,
		profiles:          profiles,
		clientRedirectURL: clientRedirectURL,
		logger:            logger,
	}
}

// HandleLogin redirects the browser to Discord's authorization page.
//
// A random state value goes into a short-lived HttpOnly cookie; the
// callback verifies the value Discord echoes back against it, which
// stops a forged callback from completing someone else's login.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes — long enough to approve, short enough to limit risk
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.discord.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleCallback completes the OAuth login.
//
// Flow: verify the state cookie, exchange the code for a Discord
// identity, upsert the user and mint a token pair, then bounce the
// browser to the desktop app's loopback URL with the pair in the query.
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// The state cookie is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   "oauth_state",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization",
			slog.String("error", errParam),
		)
		http.Error(w, "authorization denied", http.StatusForbidden)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), exchangeTimeout)
	defer cancel()

	du, err := h.discord.Exchange(ctx, code)
	if err != nil {
		h.logger.Error("auth callback: Discord exchange failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	result, err := h.authSvc.LoginWithDiscord(r.Context(), du)
	if err != nil {
		h.logger.Error("auth callback: login failed",
			slog.String("discordID", du.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	redirect, err := url.Parse(h.clientRedirectURL)
	if err != nil {
		h.logger.Error("auth callback: invalid client redirect URL", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}
	q := redirect.Query()
	q.Set("access_token", result.Tokens.AccessToken)
	q.Set("refresh_token", result.Tokens.RefreshToken)
	redirect.RawQuery = q.Encode()

	http.Redirect(w, r, redirect.String(), http.StatusSeeOther)
}

// HandleToken redeems a refresh token for a new access/refresh pair.
//
//	POST /auth/token
//	{"refreshToken": "..."}  →  {"accessToken": "...", "refreshToken": "..."}
//
// The presented refresh token is dead after a successful call. An
// unknown and an already-redeemed token produce the identical response.
func (h *AuthHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "refreshToken is required",
		})
		return
	}

	pair, err := h.authSvc.Redeem(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

// meResponse is the /api/me payload: the user plus their profiles.
type meResponse struct {
	DiscordID string                 `json:"discordId"`
	Name      string                 `json:"name"`
	AvatarURL string                 `json:"avatar"`
	Profiles  []model.ProfileSummary `json:"profiles"`
}

// HandleMe returns the authenticated user's account and profile list.
//
//	GET /api/me  (auth required)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		// Unreachable on a RequireAuth-protected route, but be safe.
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "valid authentication required"})
		return
	}

	user, err := h.authSvc.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	profiles, err := h.profiles.ListForUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		DiscordID: user.DiscordID,
		Name:      user.Name,
		AvatarURL: user.AvatarURL,
		Profiles:  profiles,
	})
}
