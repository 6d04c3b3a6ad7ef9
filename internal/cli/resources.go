package cli

import (
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/roach88/vvharness/internal/cases"
	"github.com/roach88/vvharness/internal/harness"
	"github.com/roach88/vvharness/internal/snapshot"
)

// loadSnapshots returns the built-in snapshots, overlaid with the file at
// path when one is named.
func loadSnapshots(fs afero.Fs, path string) (*snapshot.Store, error) {
	builtin, err := cases.Snapshots()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return builtin, nil
	}
	top, err := snapshot.Load(fs, path)
	if err != nil {
		return nil, err
	}
	return builtin.Overlay(top), nil
}

// selfCommand is how the runner re-enters this binary as a child.
func (o *RootOptions) selfCommand() ([]string, error) {
	if len(o.Self) > 0 {
		return o.Self, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	return []string{exe, execCaseCommand}, nil
}

// descriptors picks what to run: explicit arguments, else the suite, else
// every registered scenario.
func descriptors(args []string, suite *harness.Suite) ([]harness.Descriptor, error) {
	if len(args) > 0 {
		descs := make([]harness.Descriptor, 0, len(args))
		for _, arg := range args {
			d, err := harness.ParseDescriptor(arg)
			if err != nil {
				return nil, err
			}
			descs = append(descs, d)
		}
		return descs, nil
	}
	if suite != nil {
		return suite.Scenarios, nil
	}

	tags := harness.DefaultRegistry.Tags()
	descs := make([]harness.Descriptor, len(tags))
	for i, tag := range tags {
		descs[i] = harness.Descriptor{Type: tag}
	}
	return descs, nil
}
