package handler

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modsync/server/internal/auth"
	"github.com/modsync/server/internal/manifest"
	"github.com/modsync/server/internal/model"
	"github.com/modsync/server/internal/repository/sqlite"
	"github.com/modsync/server/internal/service"
	"github.com/modsync/server/internal/storage"
)

// testServer mounts the handlers on a router the same way production
// wiring does, backed by in-memory implementations.
type testServer struct {
	router   chi.Router
	authSvc  *service.AuthService
	profiles *service.ProfileService
	store    *storage.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.NewMemoryStore()

	authSvc := service.NewAuthService(db, db, tokens, logger)
	profileSvc := service.NewProfileService(db, db, store, logger)

	discord := auth.NewDiscordProvider("client-id", "client-secret", "http://localhost:8080/auth/callback")
	authHandler := NewAuthHandler(discord, authSvc, profileSvc, "http://localhost:22942", logger)
	profileHandler := NewProfileHandler(profileSvc, logger)

	r := chi.NewRouter()
	r.Get("/auth/login", authHandler.HandleLogin)
	r.Get("/auth/callback", authHandler.HandleCallback)
	r.Post("/auth/token", authHandler.HandleToken)
	r.Route("/api", func(r chi.Router) {
		r.Get("/profiles/{id}", profileHandler.HandleDownload)
		r.Get("/profiles/{id}/meta", profileHandler.HandleMetadata)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/me", authHandler.HandleMe)
			r.Post("/profiles", profileHandler.HandleCreate)
			r.Put("/profiles/{id}", profileHandler.HandleUpdate)
			r.Delete("/profiles/{id}", profileHandler.HandleDelete)
		})
	})

	return &testServer{router: r, authSvc: authSvc, profiles: profileSvc, store: store}
}

// login creates a user and returns their id and a valid access token.
func (ts *testServer) login(t *testing.T, discordID string) (userID, accessToken string) {
	t.Helper()
	res, err := ts.authSvc.LoginWithDiscord(context.Background(), &auth.DiscordUser{
		ID:       discordID,
		Username: "user-" + discordID,
	})
	require.NoError(t, err)
	return res.User.ID, res.Tokens.AccessToken
}

func (ts *testServer) do(t *testing.T, method, path, token string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

func testArchive(t *testing.T, profileName string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(manifest.Filename)
	require.NoError(t, err)
	_, err = w.Write([]byte("profileName: " + profileName + "\ncommunity: lethal-company\nmods:\n  - name: BepInEx-BepInExPack\n    enabled: true\n    version: {major: 5, minor: 4, patch: 2100}\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestHandleCreate(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.login(t, "111")

	rr := ts.do(t, http.MethodPost, "/api/profiles", token, testArchive(t, "My Pack"))
	assert.Equal(t, http.StatusCreated, rr.Code)

	var res struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Len(t, res.ID, 22)
}

func TestHandleCreate_NoToken(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/api/profiles", "", testArchive(t, "My Pack"))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHandleCreate_GarbageToken(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/api/profiles", "not-a-real-token", testArchive(t, "My Pack"))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHandleCreate_InvalidArchive(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.login(t, "111")

	rr := ts.do(t, http.MethodPost, "/api/profiles", token, []byte("not a zip"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var res ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, "validation_error", res.Error)
}

func TestHandleCreate_OversizedBody(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.login(t, "111")

	rr := ts.do(t, http.MethodPost, "/api/profiles", token, make([]byte, manifest.MaxSize+1))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestHandleMetadata_Public(t *testing.T) {
	ts := newTestServer(t)
	ownerID, _ := ts.login(t, "111")

	profile, err := ts.profiles.Create(context.Background(), ownerID, testArchive(t, "Shared Pack"))
	require.NoError(t, err)

	// No Authorization header — the short id alone grants read access.
	rr := ts.do(t, http.MethodGet, "/api/profiles/"+profile.ShortID+"/meta", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var meta model.ProfileMetadata
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &meta))
	assert.Equal(t, "Shared Pack", meta.Manifest.ProfileName)
	assert.Equal(t, "111", meta.Owner.DiscordID)
}

func TestHandleMetadata_NotFound(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/api/profiles/AAAAAAAAAAAAAAAAAAAAAA/meta", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleDownload_RedirectsToArchive(t *testing.T) {
	ts := newTestServer(t)
	ownerID, _ := ts.login(t, "111")

	profile, err := ts.profiles.Create(context.Background(), ownerID, testArchive(t, "Shared Pack"))
	require.NoError(t, err)

	rr := ts.do(t, http.MethodGet, "/api/profiles/"+profile.ShortID, "", nil)
	assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	assert.Contains(t, rr.Header().Get("Location"), profile.ArchiveKey)
}

func TestHandleUpdate_NonOwnerForbidden(t *testing.T) {
	ts := newTestServer(t)
	ownerID, _ := ts.login(t, "111")
	_, intruderToken := ts.login(t, "222")

	profile, err := ts.profiles.Create(context.Background(), ownerID, testArchive(t, "Original"))
	require.NoError(t, err)

	rr := ts.do(t, http.MethodPut, "/api/profiles/"+profile.ShortID, intruderToken, testArchive(t, "Hijacked"))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestHandleDelete(t *testing.T) {
	ts := newTestServer(t)
	ownerID, token := ts.login(t, "111")

	profile, err := ts.profiles.Create(context.Background(), ownerID, testArchive(t, "Doomed"))
	require.NoError(t, err)

	rr := ts.do(t, http.MethodDelete, "/api/profiles/"+profile.ShortID, token, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	// Second delete of the same id reports not-found.
	rr = ts.do(t, http.MethodDelete, "/api/profiles/"+profile.ShortID, token, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleMe(t *testing.T) {
	ts := newTestServer(t)
	ownerID, token := ts.login(t, "111")

	_, err := ts.profiles.Create(context.Background(), ownerID, testArchive(t, "Mine"))
	require.NoError(t, err)

	rr := ts.do(t, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var me struct {
		DiscordID string                 `json:"discordId"`
		Profiles  []model.ProfileSummary `json:"profiles"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &me))
	assert.Equal(t, "111", me.DiscordID)
	require.Len(t, me.Profiles, 1)
	assert.Equal(t, "Mine", me.Profiles[0].Name)
}

func TestHandleToken_RotatesPair(t *testing.T) {
	ts := newTestServer(t)

	res, err := ts.authSvc.LoginWithDiscord(context.Background(), &auth.DiscordUser{ID: "111", Username: "gamer"})
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]string{"refreshToken": res.Tokens.RefreshToken})
	rr := ts.do(t, http.MethodPost, "/auth/token", "", body)
	require.Equal(t, http.StatusOK, rr.Code)

	var pair service.TokenPair
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &pair))
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, res.Tokens.RefreshToken, pair.RefreshToken)

	// Replaying the consumed token must fail.
	rr = ts.do(t, http.MethodPost, "/auth/token", "", body)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHandleToken_MissingBody(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/auth/token", "", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
