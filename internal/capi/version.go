package capi

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Version parses voicevox_get_version as a semantic version.
func (l *Library) Version() (*semver.Version, error) {
	raw, err := l.RawVersion()
	if err != nil {
		return nil, err
	}
	v, err := semver.StrictNewVersion(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: voicevox_get_version returned %q: %v", ErrAbiMismatch, raw, err)
	}
	return v, nil
}

// CheckVersion fails with ErrAbiMismatch unless the library version
// satisfies constraint. An empty constraint accepts any parsable version.
func (l *Library) CheckVersion(constraint string) (*semver.Version, error) {
	v, err := l.Version()
	if err != nil {
		return nil, err
	}
	if constraint == "" {
		return v, nil
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return nil, fmt.Errorf("capi: invalid version constraint %q: %w", constraint, err)
	}
	if ok, errs := c.Validate(v); !ok {
		return v, fmt.Errorf("%w: core %s does not satisfy %s: %v", ErrAbiMismatch, v, constraint, errs)
	}
	return v, nil
}
