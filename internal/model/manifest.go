package model

// ProfileManifest is the parsed content of the export.r2x entry inside an
// uploaded profile archive. It exists only for the duration of one upload
// request — it is validated, projected into a Profile, and discarded.
// Field names match the manifest's camelCase YAML keys.
type ProfileManifest struct {
	ProfileName string     `yaml:"profileName" json:"profileName"`
	Community   string     `yaml:"community" json:"community,omitempty"`
	Mods        []ModEntry `yaml:"mods" json:"mods"`
}

// ModEntry is one mod in a profile: its namespace-qualified name
// (e.g. "BepInEx-BepInExPack"), whether it is enabled, and its version.
type ModEntry struct {
	Name    string     `yaml:"name" json:"name"`
	Enabled bool       `yaml:"enabled" json:"enabled"`
	Version ModVersion `yaml:"version" json:"version"`
}

// ModVersion is a semantic version triple. Components are validated to be
// non-negative when the manifest is parsed.
type ModVersion struct {
	Major int `yaml:"major" json:"major"`
	Minor int `yaml:"minor" json:"minor"`
	Patch int `yaml:"patch" json:"patch"`
}
