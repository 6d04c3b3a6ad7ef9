package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/roach88/vvharness/internal/capi"
	"github.com/roach88/vvharness/internal/config"
	"github.com/roach88/vvharness/internal/logging"

	// Registers the built-in scenarios.
	_ "github.com/roach88/vvharness/internal/cases"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	EnvFile string

	// Fs is the filesystem for suites, rules, snapshots and the .env file.
	// Defaults to the OS filesystem.
	Fs afero.Fs

	// Environ defaults to os.Environ().
	Environ []string

	// Self is the command that runs one scenario in a child process.
	// Defaults to this executable with the exec-case subcommand.
	Self []string

	// Open loads the library in exec-case. Defaults to capi.Open.
	Open func(path string) (*capi.Library, error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the vvharness CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

// newRootCommand builds the command tree around opts. Tests inject Fs and
// Environ through it.
func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vvharness",
		Short: "End-to-end test harness for the VOICEVOX CORE C API",
		Long: `Runs scenarios against a VOICEVOX CORE shared library, each in its own
process, and compares normalized stdout/stderr with stored snapshots.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", config.DefaultEnvFile, "file of VV_* variables (real environment wins)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewExecCaseCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewSnapshotCommand(opts))
	cmd.AddCommand(NewNormalizeCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// fs returns the injected filesystem or the OS one.
func (o *RootOptions) fs() afero.Fs {
	if o.Fs == nil {
		return afero.NewOsFs()
	}
	return o.Fs
}

// config loads and validates settings for commands that need them.
func (o *RootOptions) config(out *OutputFormatter) (*config.Config, error) {
	environ := o.Environ
	if environ == nil {
		environ = os.Environ()
	}
	cfg, err := config.Load(o.fs(), o.EnvFile, environ)
	if err != nil {
		return nil, commandError(out, ErrCodeConfig, "failed to load configuration", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, commandError(out, ErrCodeConfig, "invalid configuration", err)
	}
	return cfg, nil
}

// formatter writes to the command's streams so tests can capture them.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// logger writes to w. --verbose forces debug level.
func (o *RootOptions) logger(w io.Writer, cfg *config.Config) *slog.Logger {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	if o.Verbose {
		level = slog.LevelDebug
	}
	return logging.New(w, level)
}
