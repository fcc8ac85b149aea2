// Package manifest validates uploaded profile archives.
//
// An upload is a ZIP archive containing exactly one export.r2x entry (a
// YAML manifest) plus any number of opaque config files. Only the manifest
// entry is ever decompressed or parsed here — everything else is passed
// through verbatim to the blob store, never executed or interpreted.
package manifest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/modsync/server/internal/apperror"
	"github.com/modsync/server/internal/model"
)

const (
	// Filename is the manifest entry every profile archive must contain.
	Filename = "export.r2x"

	// MaxSize is the ceiling on an archive's logical (decompressed)
	// content. It is enforced against the declared uncompressed sizes
	// before anything is inflated, and again against the actual bytes
	// while the manifest entry is read, so a lying ZIP header cannot
	// smuggle a decompression bomb past the check.
	MaxSize = 2 * 1024 * 1024

	// MaxNameLength bounds the profile name and community slug.
	MaxNameLength = 64
)

// modNamePattern matches namespace-qualified mod names such as
// "BepInEx-BepInExPack": hyphen-joined word tokens, at least two of them.
var modNamePattern = regexp.MustCompile(`^[A-Za-z0-9_ ]+(-[A-Za-z0-9_ .]+)+$`)

// Validate parses and validates a profile archive.
//
// It returns the validated manifest, or a typed error: PayloadTooLarge if
// the decompressed content exceeds MaxSize, a validation error if the
// archive is not a ZIP, the manifest entry is missing, or the manifest
// fails structural or semantic checks. The caller keeps the raw archive
// bytes for storage; Validate never modifies them.
func Validate(archive []byte) (*model.ProfileManifest, error) {
	if len(archive) > MaxSize {
		return nil, apperror.PayloadTooLarge(
			fmt.Sprintf("Profile archive exceeds the %d MiB limit", MaxSize/(1024*1024)))
	}

	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, apperror.ValidationFailed("archive", "Invalid ZIP archive")
	}

	// Bound the total declared decompressed size before inflating anything.
	// ZIP can compress hostile input by several orders of magnitude, so the
	// compressed-size check above is not enough on its own.
	//
	// Each entry is checked on its own before it is accumulated: a zip64
	// header is free to declare a size near 2^64, and summing that would
	// wrap total right past the ceiling check. With every entry capped at
	// MaxSize the sum cannot overflow (entry count is bounded by the
	// compressed archive size).
	var total uint64
	for _, f := range zr.File {
		if f.UncompressedSize64 > MaxSize {
			return nil, apperror.PayloadTooLarge(
				fmt.Sprintf("Profile content exceeds the %d MiB limit", MaxSize/(1024*1024)))
		}
		total += f.UncompressedSize64
		if total > MaxSize {
			return nil, apperror.PayloadTooLarge(
				fmt.Sprintf("Profile content exceeds the %d MiB limit", MaxSize/(1024*1024)))
		}
	}

	var entry *zip.File
	for _, f := range zr.File {
		if f.Name == Filename {
			entry = f
			break
		}
	}
	if entry == nil {
		return nil, apperror.ValidationFailed("archive",
			fmt.Sprintf("Invalid ZIP archive: %s file is missing", Filename))
	}

	raw, err := readBounded(entry)
	if err != nil {
		return nil, err
	}

	var m model.ProfileManifest
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, apperror.ValidationFailed("manifest",
			fmt.Sprintf("Error parsing %s: %v", Filename, err))
	}

	if err := validateFields(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// readBounded decompresses the manifest entry, cutting the read off as
// soon as it passes MaxSize regardless of what the ZIP header declared.
func readBounded(entry *zip.File) ([]byte, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, apperror.ValidationFailed("archive",
			fmt.Sprintf("Invalid ZIP archive: cannot read %s", Filename))
	}
	defer rc.Close()

	raw, err := io.ReadAll(io.LimitReader(rc, MaxSize+1))
	if err != nil {
		// corrupt entry data or a checksum mismatch surfaces here
		return nil, apperror.ValidationFailed("archive",
			fmt.Sprintf("Invalid ZIP archive: cannot read %s", Filename))
	}
	if len(raw) > MaxSize {
		return nil, apperror.PayloadTooLarge(
			fmt.Sprintf("%s exceeds the %d MiB limit", Filename, MaxSize/(1024*1024)))
	}
	return raw, nil
}

func validateFields(m *model.ProfileManifest) error {
	name := strings.TrimSpace(m.ProfileName)
	if name == "" {
		return apperror.ValidationFailed("profileName", "profileName is required")
	}
	if len(name) > MaxNameLength {
		return apperror.ValidationFailed("profileName",
			fmt.Sprintf("profileName must be %d characters or less", MaxNameLength))
	}
	m.ProfileName = name

	if len(m.Community) > MaxNameLength {
		return apperror.ValidationFailed("community",
			fmt.Sprintf("community must be %d characters or less", MaxNameLength))
	}

	for i, mod := range m.Mods {
		if !modNamePattern.MatchString(mod.Name) {
			return apperror.ValidationFailed("mods",
				fmt.Sprintf("mods[%d].name %q is not a valid namespace-name token", i, mod.Name))
		}
		v := mod.Version
		if v.Major < 0 || v.Minor < 0 || v.Patch < 0 {
			return apperror.ValidationFailed("mods",
				fmt.Sprintf("mods[%d].version components must be non-negative", i))
		}
	}
	return nil
}
