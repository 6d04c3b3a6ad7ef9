package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/vvharness/internal/snapshot"
)

// SnapshotOptions holds flags for the snapshot command.
type SnapshotOptions struct {
	*RootOptions
	Platform string
	All      bool // list every entry
}

// NewSnapshotCommand creates the snapshot command.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "snapshot [<scenario> <field>]",
		Short: "Print expected output as resolved for a platform",
		Long: `Print the snapshot text a scenario's field resolves to on a platform:
the exact platform first, then its family (unix), then the unqualified value.

With --all, list every stored entry instead.

Examples:
  vvharness snapshot user_dict_load stderr --platform windows
  vvharness snapshot --all --format json`,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.All {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return showSnapshot(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Platform, "platform", "", "platform to resolve for (overrides VV_PLATFORM)")
	cmd.Flags().BoolVar(&opts.All, "all", false, "list every entry")

	return cmd
}

// showSnapshot prints the text the harness would compare against for
// section.field on the platform, or every entry with --all.
func showSnapshot(opts *SnapshotOptions, args []string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	cfg, err := opts.config(out)
	if err != nil {
		return err
	}
	snaps, err := loadSnapshots(opts.fs(), cfg.Snapshots)
	if err != nil {
		return commandError(out, ErrCodeLoadFailed, "failed to load snapshots", err)
	}

	if opts.All {
		return listSnapshots(out, opts.Format, snaps.Entries())
	}

	// --platform wins over VV_PLATFORM.
	platform := cfg.Platform
	if cmd.Flags().Changed("platform") {
		platform = opts.Platform
	}
	text, err := snaps.Resolve(args[0], args[1], platform)
	if errors.Is(err, snapshot.ErrNotFound) {
		return reportError(out, ExitFailure, ErrCodeNotFound, "no snapshot", err)
	}
	if err != nil {
		return commandError(out, ErrCodeGeneric, "failed to resolve snapshot", err)
	}

	if opts.Format == "json" {
		return out.Success(snapshot.Entry{Section: args[0], Field: args[1], Platform: platform, Text: text})
	}
	_, err = io.WriteString(out.Writer, text)
	return err
}

// listSnapshots shows unqualified entries with platform "*".
func listSnapshots(out *OutputFormatter, format string, entries []snapshot.Entry) error {
	if format == "json" {
		return out.Success(entries)
	}
	t := out.Table("SCENARIO", "FIELD", "PLATFORM", "TEXT")
	for _, e := range entries {
		platform := e.Platform
		if platform == "" {
			platform = "*"
		}
		t.AppendRow([]any{e.Section, e.Field, platform, fmt.Sprintf("%q", e.Text)})
	}
	t.Render()
	return nil
}
