package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modsync/server/internal/apperror"
	"github.com/modsync/server/internal/model"
	"github.com/modsync/server/internal/repository"
)

// compile-time check that *DB implements repository.ProfileRepository
var _ repository.ProfileRepository = (*DB)(nil)

// Create inserts a new profile row. The caller has already allocated the
// internal id and short id and written the archive blob; this is the
// metadata commit that makes the profile visible.
func (db *DB) Create(ctx context.Context, profile *model.Profile) error {
	mods, err := json.Marshal(profile.Mods)
	if err != nil {
		return fmt.Errorf("sqlite: encoding mod list: %w", err)
	}

	now := time.Now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO profiles (id, short_id, owner_id, name, community, mods, archive_key, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		profile.ID,
		profile.ShortID,
		profile.OwnerID,
		profile.Name,
		profile.Community,
		string(mods),
		profile.ArchiveKey,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		// Short ids are derived from fresh UUIDs, so a collision means a
		// concurrent writer raced us on the same id.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperror.Conflict("profile", profile.ShortID)
		}
		return fmt.Errorf("sqlite: creating profile %s: %w", profile.ShortID, err)
	}

	return nil
}

// Replace performs the ownership-gated wholesale update: name, community,
// mods, and archive key are overwritten in one transaction; created_at is
// preserved and updated_at advances.
//
// The ownership check and the UPDATE run in the same transaction so a
// concurrent delete or transfer cannot slip between them.
func (db *DB) Replace(ctx context.Context, profile *model.Profile) error {
	mods, err := json.Marshal(profile.Mods)
	if err != nil {
		return fmt.Errorf("sqlite: encoding mod list: %w", err)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var ownerID string
	var createdAt time.Time
	err = tx.QueryRowContext(ctx,
		`SELECT owner_id, created_at FROM profiles WHERE short_id = ?`, profile.ShortID,
	).Scan(&ownerID, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return apperror.NotFound("profile", profile.ShortID)
		}
		return fmt.Errorf("sqlite: looking up profile %s: %w", profile.ShortID, err)
	}
	if ownerID != profile.OwnerID {
		return apperror.Forbidden("User is not the owner of this profile")
	}

	profile.CreatedAt = createdAt
	profile.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`UPDATE profiles
		 SET name = ?, community = ?, mods = ?, archive_key = ?, updated_at = ?
		 WHERE short_id = ?`,
		profile.Name,
		profile.Community,
		string(mods),
		profile.ArchiveKey,
		profile.UpdatedAt,
		profile.ShortID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating profile %s: %w", profile.ShortID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing profile update: %w", err)
	}
	return nil
}

// GetByShortID retrieves a profile by its public short id.
func (db *DB) GetByShortID(ctx context.Context, shortID string) (*model.Profile, error) {
	return db.scanProfile(db.conn.QueryRowContext(ctx,
		`SELECT id, short_id, owner_id, name, community, mods, archive_key, downloads, created_at, updated_at
		 FROM profiles WHERE short_id = ?`,
		shortID,
	), shortID)
}

// IncrementDownloads bumps the download counter and returns the profile.
// The UPDATE doubles as the existence check — RETURNING yields no row for
// an unknown id.
func (db *DB) IncrementDownloads(ctx context.Context, shortID string) (*model.Profile, error) {
	return db.scanProfile(db.conn.QueryRowContext(ctx,
		`UPDATE profiles SET downloads = downloads + 1
		 WHERE short_id = ?
		 RETURNING id, short_id, owner_id, name, community, mods, archive_key, downloads, created_at, updated_at`,
		shortID,
	), shortID)
}

func (db *DB) scanProfile(row *sql.Row, shortID string) (*model.Profile, error) {
	var p model.Profile
	var mods string

	err := row.Scan(
		&p.ID,
		&p.ShortID,
		&p.OwnerID,
		&p.Name,
		&p.Community,
		&mods,
		&p.ArchiveKey,
		&p.Downloads,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("profile", shortID)
		}
		return nil, fmt.Errorf("sqlite: getting profile %s: %w", shortID, err)
	}

	if err := json.Unmarshal([]byte(mods), &p.Mods); err != nil {
		return nil, fmt.Errorf("sqlite: decoding mod list for profile %s: %w", shortID, err)
	}

	return &p, nil
}

// Delete removes a profile if ownerID owns it and returns the archive key
// so the caller can clean up the blob. Repeating the call reports
// apperror.ErrNotFound — deletion is not idempotent by contract.
func (db *DB) Delete(ctx context.Context, shortID, ownerID string) (string, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var owner, archiveKey string
	err = tx.QueryRowContext(ctx,
		`SELECT owner_id, archive_key FROM profiles WHERE short_id = ?`, shortID,
	).Scan(&owner, &archiveKey)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", apperror.NotFound("profile", shortID)
		}
		return "", fmt.Errorf("sqlite: looking up profile %s: %w", shortID, err)
	}
	if owner != ownerID {
		return "", apperror.Forbidden("User is not the owner of this profile")
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM profiles WHERE short_id = ?`, shortID,
	); err != nil {
		return "", fmt.Errorf("sqlite: deleting profile %s: %w", shortID, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("sqlite: committing profile delete: %w", err)
	}
	return archiveKey, nil
}

// ListByOwner returns the owner's profile summaries ordered by creation
// time, then id, so the order is stable across calls.
func (db *DB) ListByOwner(ctx context.Context, ownerID string) ([]model.ProfileSummary, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT short_id, name, community, created_at, updated_at
		 FROM profiles
		 WHERE owner_id = ?
		 ORDER BY created_at, id`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing profiles for user %s: %w", ownerID, err)
	}
	defer rows.Close()

	summaries := []model.ProfileSummary{}
	for rows.Next() {
		var s model.ProfileSummary
		if err := rows.Scan(&s.ShortID, &s.Name, &s.Community, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning profile row: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating profiles: %w", err)
	}

	return summaries, nil
}
