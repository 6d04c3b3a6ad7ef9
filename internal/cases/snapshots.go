package cases

import (
	_ "embed"
	"errors"

	"github.com/roach88/vvharness/internal/snapshot"
)

//go:embed snapshots.toml
var snapshotsTOML []byte

// Snapshots parses the built-in snapshots.
func Snapshots() (*snapshot.Store, error) {
	return snapshot.Parse(snapshotsTOML)
}

// optional resolves a snapshot that may legitimately be absent.
func optional(snaps snapshot.Resolver, section, field string) (string, bool, error) {
	text, err := snaps.Resolve(section, field)
	if errors.Is(err, snapshot.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}
