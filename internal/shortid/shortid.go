// Package shortid derives compact, URL-safe public identifiers from UUIDs.
//
// A profile's internal id is a random UUID (128 bits). Its public short id
// is the base64 URL-safe, unpadded encoding of the raw 16 bytes — always
// 22 characters, valid unescaped in a URL path segment, and a deterministic
// bijection of the UUID. Uniqueness comes from the UUID's entropy, not from
// this encoding.
package shortid

import (
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

// Length is the fixed length of every encoded short id.
const Length = 22

// Encode returns the short id for the given UUID. Calling it twice with
// the same UUID always yields the same string.
func Encode(id uuid.UUID) string {
	return base64.RawURLEncoding.EncodeToString(id[:])
}

// Decode is the inverse of Encode. It rejects anything that is not a
// 22-character unpadded URL-safe base64 encoding of 16 bytes.
func Decode(s string) (uuid.UUID, error) {
	if len(s) != Length {
		return uuid.Nil, fmt.Errorf("shortid: invalid length %d", len(s))
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("shortid: decoding %q: %w", s, err)
	}
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("shortid: %w", err)
	}
	return id, nil
}
