package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/vvharness/internal/capture"
	"github.com/roach88/vvharness/internal/normalize"
)

// NormalizeOptions holds flags for the normalize command.
type NormalizeOptions struct {
	*RootOptions
	Platform string
	Stream   string // stdout or stderr
	Rules    bool   // list rules instead of filtering
}

// NewNormalizeCommand creates the normalize command.
func NewNormalizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NormalizeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Mask volatile content in text read from stdin",
		Long: `Apply the mask rules to stdin and write the result to stdout, as the
runner does with captured output before comparing it with snapshots.

Examples:
  ./my_program 2>&1 >/dev/null | vvharness normalize --stream stderr --platform windows
  vvharness normalize --rules`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNormalize(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Platform, "platform", "", "platform (overrides VV_PLATFORM)")
	cmd.Flags().StringVar(&opts.Stream, "stream", string(normalize.StreamStderr), "stream the text came from (stdout|stderr)")
	cmd.Flags().BoolVar(&opts.Rules, "rules", false, "list the rules instead of filtering")

	return cmd
}

// runNormalize masks stdin with the configured rules, or lists the rules
// with --rules.
func runNormalize(opts *NormalizeOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	stream := normalize.Stream(opts.Stream)
	if stream != normalize.StreamStdout && stream != normalize.StreamStderr {
		return commandError(out, ErrCodeGeneric, fmt.Sprintf("invalid stream %q: must be stdout or stderr", opts.Stream), nil)
	}

	cfg, err := opts.config(out)
	if err != nil {
		return err
	}
	rules, err := cfg.RuleSet(opts.fs())
	if err != nil {
		return commandError(out, ErrCodeLoadFailed, "failed to load mask rules", err)
	}

	if opts.Rules {
		if opts.Format == "json" {
			return out.Success(rules.Rules())
		}
		t := out.Table("NAME", "PLATFORMS", "STREAM", "REPLACEMENT")
		for _, r := range rules.Rules() {
			t.AppendRow([]any{r.Name, r.Platforms, streamName(r.Stream), r.Replacement})
		}
		t.Render()
		return nil
	}

	platform := cfg.Platform
	if cmd.Flags().Changed("platform") {
		platform = opts.Platform
	}

	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return commandError(out, ErrCodeGeneric, "failed to read stdin", err)
	}
	// Same decoding the harness applies to captured child output.
	masked := rules.Apply(capture.Decode(data), stream, platform)

	if opts.Format == "json" {
		return out.Success(map[string]string{"platform": platform, "stream": string(stream), "text": masked})
	}
	_, err = io.WriteString(out.Writer, masked)
	return err
}

// streamName renders the empty stream as "both".
func streamName(s normalize.Stream) string {
	if s == normalize.StreamBoth {
		return "both"
	}
	return string(s)
}
