package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/vvharness/internal/capi"
	"github.com/roach88/vvharness/internal/harness"
)

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var symbols bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered scenarios",
		Long: `List registered scenario tags.

With --symbols, list the C API exports the harness binds instead. A library
missing any of them fails every scenario at the load stage.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := harness.DefaultRegistry.Tags()
			if symbols {
				names = capi.SymbolNames()
			}
			out := rootOpts.formatter(cmd)
			if rootOpts.Format == "json" {
				return out.Success(names)
			}
			for _, name := range names {
				fmt.Fprintln(out.Writer, name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&symbols, "symbols", false, "list the bound C API exports")

	return cmd
}
