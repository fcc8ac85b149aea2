package handler

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/modsync/server/internal/auth"
	"github.com/modsync/server/internal/manifest"
	"github.com/modsync/server/internal/service"
)

// ProfileHandler exposes profile synchronization over HTTP.
//
//	POST   /api/profiles           create from an uploaded archive (auth)
//	PUT    /api/profiles/{id}      full replace upload (auth, owner only)
//	GET    /api/profiles/{id}      redirect to the archive download
//	DELETE /api/profiles/{id}      delete profile + archive (auth, owner only)
//	GET    /api/profiles/{id}/meta manifest + owner + timestamps
//
// Reads take no credentials: the short id is the capability.
type ProfileHandler struct {
	profiles *service.ProfileService
	logger   *slog.Logger
}

func NewProfileHandler(profiles *service.ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger}
}

// uploadResponse is returned by create and update: the public id and the
// timestamps the client needs for sync bookkeeping.
type uploadResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HandleCreate creates a profile from the request body, which is the
// profile archive itself (not a multipart form).
//
//	POST /api/profiles  (auth required)
func (h *ProfileHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "valid authentication required"})
		return
	}

	archive, ok := h.readArchive(w, r)
	if !ok {
		return
	}

	profile, err := h.profiles.Create(r.Context(), userID, archive)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		ID:        profile.ShortID,
		CreatedAt: profile.CreatedAt,
		UpdatedAt: profile.UpdatedAt,
	})
}

// HandleUpdate replaces an existing profile wholesale.
//
//	PUT /api/profiles/{id}  (auth required, owner only)
func (h *ProfileHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "valid authentication required"})
		return
	}

	id := chi.URLParam(r, "id")
	archive, ok := h.readArchive(w, r)
	if !ok {
		return
	}

	profile, err := h.profiles.Update(r.Context(), id, userID, archive)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		ID:        profile.ShortID,
		CreatedAt: profile.CreatedAt,
		UpdatedAt: profile.UpdatedAt,
	})
}

// HandleDownload redirects to a short-lived URL for the stored archive.
//
//	GET /api/profiles/{id}  (public)
func (h *ProfileHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	location, err := h.profiles.ArchiveLocation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	http.Redirect(w, r, location, http.StatusTemporaryRedirect)
}

// HandleMetadata returns a profile's manifest, owner, and timestamps.
//
//	GET /api/profiles/{id}/meta  (public)
func (h *ProfileHandler) HandleMetadata(w http.ResponseWriter, r *http.Request) {
	meta, err := h.profiles.Metadata(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, meta)
}

// HandleDelete removes a profile and its archive.
//
//	DELETE /api/profiles/{id}  (auth required, owner only)
func (h *ProfileHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "valid authentication required"})
		return
	}

	if err := h.profiles.Delete(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// readArchive reads the upload body, bounded at the archive size ceiling
// plus one byte so an oversized body is detected without buffering it.
func (h *ProfileHandler) readArchive(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	archive, err := io.ReadAll(io.LimitReader(r.Body, manifest.MaxSize+1))
	if err != nil {
		h.logger.Warn("reading upload body failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "could not read upload"})
		return nil, false
	}
	if len(archive) > manifest.MaxSize {
		writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{
			Error:   "payload_too_large",
			Message: "Profile archive exceeds the 2 MiB limit",
		})
		return nil, false
	}
	if len(archive) == 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "upload body is empty"})
		return nil, false
	}
	return archive, true
}
