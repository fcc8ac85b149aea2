package model

import "time"

// Profile is a named bundle of mods plus config files owned by one user.
//
// ID is an internal UUID; ShortID is the public identifier derived
// deterministically from it (see internal/shortid). ShortID is unique,
// immutable once assigned, and never reused across profiles.
//
// Mods and the stored archive are replaced wholesale on every update —
// there is no partial or merge update. ArchiveKey points at the blob
// store object holding the uploaded archive verbatim.
type Profile struct {
	ID         string     `json:"-"`
	ShortID    string     `json:"id"`
	OwnerID    string     `json:"-"`
	Name       string     `json:"name"`
	Community  string     `json:"community,omitempty"`
	Mods       []ModEntry `json:"mods"`
	ArchiveKey string     `json:"-"`
	Downloads  int64      `json:"downloads"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// ProfileSummary is the listing projection of a profile — everything a
// client needs to show a profile in a list, without the mod list.
type ProfileSummary struct {
	ShortID   string    `json:"id"`
	Name      string    `json:"name"`
	Community string    `json:"community,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProfileMetadata is what GET /api/profiles/{id}/meta returns: the owner,
// timestamps, and manifest content, but not the archive bytes.
type ProfileMetadata struct {
	ShortID   string          `json:"id"`
	Owner     User            `json:"owner"`
	Manifest  ProfileManifest `json:"manifest"`
	Downloads int64           `json:"downloads"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}
