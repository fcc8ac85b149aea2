package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// recordUserHandler returns a handler that records the user id the
// middleware placed in the context.
func recordUserHandler(gotUserID *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := UserIDFromContext(r.Context())
		*gotUserID = id
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth_ValidToken(t *testing.T) {
	ts := newTestTokenService(t)
	token, err := ts.Generate("user-123")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	var gotUserID string
	handler := RequireAuth(ts)(recordUserHandler(&gotUserID))

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if gotUserID != "user-123" {
		t.Errorf("context user id = %q, want %q", gotUserID, "user-123")
	}
}

func TestRequireAuth_RejectsWithJSON(t *testing.T) {
	ts := newTestTokenService(t)

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"garbage token", "Bearer not-a-real-token"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var gotUserID string
			handler := RequireAuth(ts)(recordUserHandler(&gotUserID))

			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
			}
			if gotUserID != "" {
				t.Error("next handler ran for an unauthenticated request")
			}

			// The 401 body is JSON and must be served as such.
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}
			var body struct {
				Error   string `json:"error"`
				Message string `json:"message"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("401 body is not valid JSON: %v", err)
			}
			if body.Error != "unauthorized" {
				t.Errorf("error = %q, want %q", body.Error, "unauthorized")
			}
		})
	}
}
