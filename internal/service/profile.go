package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rs/xid"

	"github.com/modsync/server/internal/apperror"
	"github.com/modsync/server/internal/manifest"
	"github.com/modsync/server/internal/model"
	"github.com/modsync/server/internal/repository"
	"github.com/modsync/server/internal/shortid"
	"github.com/modsync/server/internal/storage"
)

// upstreamTimeout bounds every call to the blob store. A stuck backend
// turns into a retryable error for the caller instead of a hung request.
const upstreamTimeout = 10 * time.Second

// ProfileService orchestrates profile uploads: validation, blob writes,
// and the metadata transaction.
//
// Write ordering is blob first, metadata second — a committed row never
// references bytes that are not yet durable. If the metadata write fails
// the fresh blob is orphaned garbage, cleaned up out-of-band; that is the
// accepted trade-off for never serving a dangling reference.
type ProfileService struct {
	profiles repository.ProfileRepository
	users    repository.UserRepository
	archives storage.ArchiveStore
	logger   *slog.Logger
}

func NewProfileService(
	profiles repository.ProfileRepository,
	users repository.UserRepository,
	archives storage.ArchiveStore,
	logger *slog.Logger,
) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		users:    users,
		archives: archives,
		logger:   logger,
	}
}

// Create validates the uploaded archive and creates a new profile owned
// by ownerID. The public short id is derived deterministically from a
// fresh internal UUID.
func (s *ProfileService) Create(ctx context.Context, ownerID string, archive []byte) (*model.Profile, error) {
	m, err := manifest.Validate(archive)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	profile := &model.Profile{
		ID:         id.String(),
		ShortID:    shortid.Encode(id),
		OwnerID:    ownerID,
		Name:       m.ProfileName,
		Community:  m.Community,
		Mods:       m.Mods,
		ArchiveKey: newArchiveKey(),
	}

	if err := s.putArchive(ctx, profile.ArchiveKey, archive); err != nil {
		return nil, err
	}

	if err := s.profiles.Create(ctx, profile); err != nil {
		// The blob outlives the failed metadata write as acceptable
		// garbage; an out-of-band sweep reclaims unreferenced keys.
		s.logger.Warn("profile metadata write failed after blob upload",
			slog.String("archiveKey", profile.ArchiveKey),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("profile created",
		slog.String("id", profile.ShortID),
		slog.String("ownerID", ownerID),
		slog.Int("mods", len(profile.Mods)),
	)

	return profile, nil
}

// Update replaces a profile's name, community, mod list, and archive
// wholesale. Only the owner may update; created_at is preserved and
// updated_at advances.
func (s *ProfileService) Update(ctx context.Context, shortID, ownerID string, archive []byte) (*model.Profile, error) {
	m, err := manifest.Validate(archive)
	if err != nil {
		return nil, err
	}

	// Remember the old blob so it can be cleaned up once the replacement
	// is committed.
	old, err := s.profiles.GetByShortID(ctx, shortID)
	if err != nil {
		return nil, err
	}

	// Reject a non-owner here, before paying for the blob upload. Replace
	// re-checks ownership inside its transaction; this read is only an
	// early out.
	if old.OwnerID != ownerID {
		return nil, apperror.Forbidden("User is not the owner of this profile")
	}

	profile := &model.Profile{
		ShortID:    shortID,
		OwnerID:    ownerID,
		Name:       m.ProfileName,
		Community:  m.Community,
		Mods:       m.Mods,
		ArchiveKey: newArchiveKey(),
	}

	if err := s.putArchive(ctx, profile.ArchiveKey, archive); err != nil {
		return nil, err
	}

	if err := s.profiles.Replace(ctx, profile); err != nil {
		s.logger.Warn("profile metadata update failed after blob upload",
			slog.String("id", shortID),
			slog.String("archiveKey", profile.ArchiveKey),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.deleteArchive(ctx, old.ArchiveKey)

	s.logger.Info("profile updated",
		slog.String("id", shortID),
		slog.String("ownerID", ownerID),
		slog.Int("mods", len(profile.Mods)),
	)

	return profile, nil
}

// ArchiveLocation resolves a short id to a fetchable URL for the stored
// archive and counts the download. No authorization: the short id itself
// is the capability, profiles are publicly fetchable by id.
func (s *ProfileService) ArchiveLocation(ctx context.Context, shortID string) (string, error) {
	profile, err := s.profiles.IncrementDownloads(ctx, shortID)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, upstreamTimeout)
	defer cancel()

	location, err := s.archives.Location(ctx, profile.ArchiveKey)
	if err != nil {
		return "", storageErr(err)
	}
	return location, nil
}

// Metadata returns the owner, timestamps, and manifest content for a
// profile — everything except the archive bytes. Same visibility policy
// as ArchiveLocation.
func (s *ProfileService) Metadata(ctx context.Context, shortID string) (*model.ProfileMetadata, error) {
	profile, err := s.profiles.GetByShortID(ctx, shortID)
	if err != nil {
		return nil, err
	}

	owner, err := s.users.GetByID(ctx, profile.OwnerID)
	if err != nil {
		return nil, err
	}

	return &model.ProfileMetadata{
		ShortID: profile.ShortID,
		Owner:   *owner,
		Manifest: model.ProfileManifest{
			ProfileName: profile.Name,
			Community:   profile.Community,
			Mods:        profile.Mods,
		},
		Downloads: profile.Downloads,
		CreatedAt: profile.CreatedAt,
		UpdatedAt: profile.UpdatedAt,
	}, nil
}

// Delete removes a profile and its archive. Only the owner may delete;
// repeating the call reports NotFound.
func (s *ProfileService) Delete(ctx context.Context, shortID, ownerID string) error {
	archiveKey, err := s.profiles.Delete(ctx, shortID, ownerID)
	if err != nil {
		return err
	}

	s.deleteArchive(ctx, archiveKey)

	s.logger.Info("profile deleted",
		slog.String("id", shortID),
		slog.String("ownerID", ownerID),
	)
	return nil
}

// ListForUser returns the user's profile summaries in a stable order.
func (s *ProfileService) ListForUser(ctx context.Context, ownerID string) ([]model.ProfileSummary, error) {
	return s.profiles.ListByOwner(ctx, ownerID)
}

func (s *ProfileService) putArchive(ctx context.Context, key string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, upstreamTimeout)
	defer cancel()

	if err := s.archives.Put(ctx, key, data); err != nil {
		return storageErr(err)
	}
	return nil
}

// deleteArchive is best-effort: the metadata is already gone (or
// repointed), so a failed blob delete only leaves garbage for the
// out-of-band sweep.
func (s *ProfileService) deleteArchive(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(ctx, upstreamTimeout)
	defer cancel()

	if err := s.archives.Delete(ctx, key); err != nil {
		s.logger.Warn("archive blob delete failed",
			slog.String("archiveKey", key),
			slog.String("error", err.Error()),
		)
	}
}

// newArchiveKey returns a fresh storage key. Every upload gets its own
// key so an update never overwrites bytes a concurrent download may
// still be reading.
func newArchiveKey() string {
	return "profiles/" + xid.New().String() + ".zip"
}

// storageErr classifies blob-store failures as retryable upstream errors
// unless they already carry an application classification.
func storageErr(err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Upstream(err)
}
