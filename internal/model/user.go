// Package model defines the data structures used throughout the application.
// JSON tags follow the camelCase wire format the desktop client expects.
package model

import "time"

// User represents a registered account.
//
// Discord is the identity provider, so the primary external identifier is
// the Discord user ID. We still generate our own internal string ID (xid)
// rather than tying primary keys to a third party's numbering scheme.
//
// The UNIQUE constraint on discord_id in the DB ensures one Discord account
// maps to exactly one app account. Name and AvatarURL are refreshed on every
// login; ID and CreatedAt never change. Users are never deleted.
type User struct {
	ID        string    `json:"-"` // internal id — not exposed over the API
	DiscordID string    `json:"discordId"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
