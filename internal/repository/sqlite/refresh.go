package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/modsync/server/internal/apperror"
	"github.com/modsync/server/internal/repository"
)

// compile-time check that *DB implements repository.RefreshTokenRepository
var _ repository.RefreshTokenRepository = (*DB)(nil)

// Insert records a freshly issued refresh value (already hashed by the
// service layer) as currently valid for the given user.
func (db *DB) Insert(ctx context.Context, tokenHash, userID string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO refresh_tokens (token_hash, user_id, issued_at) VALUES (?, ?, ?)`,
		tokenHash, userID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting refresh token: %w", err)
	}
	return nil
}

// Redeem consumes oldHash and records newHash for the same user in one
// transaction.
//
// The conditional DELETE is the atomic consume: SQLite serializes writes,
// so when two redemptions race on the same value exactly one DELETE
// affects a row. The loser — like any caller presenting an unknown
// value — gets apperror.ErrUnauthorized, with nothing revealing whether
// the value was ever valid.
func (db *DB) Redeem(ctx context.Context, oldHash, newHash string) (string, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var userID string
	err = tx.QueryRowContext(ctx,
		`DELETE FROM refresh_tokens WHERE token_hash = ? RETURNING user_id`, oldHash,
	).Scan(&userID)
	if err != nil {
		if err == sql.ErrNoRows {
			// Unknown or already consumed; both must look identical to
			// the caller.
			return "", apperror.Unauthorized("Invalid or expired refresh token")
		}
		return "", fmt.Errorf("sqlite: consuming refresh token: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO refresh_tokens (token_hash, user_id, issued_at) VALUES (?, ?, ?)`,
		newHash, userID, time.Now().UTC(),
	); err != nil {
		return "", fmt.Errorf("sqlite: inserting replacement refresh token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("sqlite: committing refresh redemption: %w", err)
	}
	return userID, nil
}
