// Package storage abstracts where profile archives live.
//
// The service layer only sees ArchiveStore; production wires the S3
// implementation, tests wire the in-memory one. Archives are write-once
// per key: updates write a fresh key and the old object becomes garbage
// cleaned up after the metadata commit.
package storage

import (
	"context"
	"time"
)

// LocationTTL is how long a fetch location handed to a client stays valid.
const LocationTTL = 15 * time.Minute

// ArchiveStore is key-addressable blob storage for profile archives.
type ArchiveStore interface {
	// Put stores data under key. The key must not be referenced by any
	// committed metadata until Put has returned successfully.
	Put(ctx context.Context, key string, data []byte) error

	// Location resolves a key to a URL a client can fetch the archive
	// from for at least LocationTTL.
	Location(ctx context.Context, key string) (string, error)

	// Delete removes the object. Deleting a missing key is not an error;
	// blob cleanup runs after metadata commits and must be repeatable.
	Delete(ctx context.Context, key string) error
}
