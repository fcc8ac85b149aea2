// Package repository defines the persistence interfaces the service layer
// programs against. The sqlite subpackage is the only implementation; in
// tests the same interfaces are satisfied by an in-memory sqlite database.
package repository

import (
	"context"

	"github.com/modsync/server/internal/model"
)

// UserRepository persists user accounts keyed by their Discord identity.
type UserRepository interface {
	// Upsert inserts the user on first login and refreshes name/avatar on
	// subsequent logins, keyed on DiscordID. Fills ID and timestamps.
	Upsert(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// ProfileRepository persists profile metadata. Archive bytes live in the
// blob store; rows only carry the storage key.
type ProfileRepository interface {
	// Create inserts a new profile. Fills timestamps. A short id
	// collision reports apperror.ErrConflict.
	Create(ctx context.Context, profile *model.Profile) error

	// Replace performs an ownership-gated wholesale update of name,
	// community, mods, and archive key in a single transaction.
	// created_at is preserved, updated_at advances. Returns
	// apperror.ErrNotFound for unknown ids and apperror.ErrForbidden
	// when ownerID does not own the profile.
	Replace(ctx context.Context, profile *model.Profile) error

	GetByShortID(ctx context.Context, shortID string) (*model.Profile, error)

	// IncrementDownloads bumps the download counter and returns the
	// profile, in one statement. Used on archive fetch.
	IncrementDownloads(ctx context.Context, shortID string) (*model.Profile, error)

	// Delete removes the row if ownerID owns it and returns the archive
	// key so the caller can delete the blob after commit. A repeat call
	// on a deleted id reports apperror.ErrNotFound.
	Delete(ctx context.Context, shortID, ownerID string) (archiveKey string, err error)

	// ListByOwner returns the owner's profile summaries in a
	// deterministic order (created_at, then id).
	ListByOwner(ctx context.Context, ownerID string) ([]model.ProfileSummary, error)
}

// RefreshTokenRepository is the refresh ledger: the set of currently
// valid (unredeemed) refresh values, stored hashed.
type RefreshTokenRepository interface {
	// Insert records a freshly issued refresh value for a user.
	Insert(ctx context.Context, tokenHash, userID string) error

	// Redeem atomically consumes oldHash and records newHash for the
	// same user, returning the owning userID. At most one concurrent
	// caller can succeed for a given oldHash; everyone else gets
	// apperror.ErrUnauthorized whether the value was consumed or never
	// existed.
	Redeem(ctx context.Context, oldHash, newHash string) (userID string, err error)
}
