package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/vvharness/internal/harness"
)

const execCaseCommand = "exec-case"

// NewExecCaseCommand creates the hidden child entry point. Its stdout and
// stderr are what the runner captures, so it prints nothing of its own.
func NewExecCaseCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:    execCaseCommand,
		Short:  "Run one scenario described by the VVHARNESS_* environment",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := &harness.Executor{
				Open:   rootOpts.Open,
				Stdout: cmd.OutOrStdout(),
			}
			if code := e.Main(commandContext(cmd)); code != harness.ExitOK {
				return &ExitError{Code: code}
			}
			return nil
		},
	}
}
