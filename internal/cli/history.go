package cli

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/vvharness/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string // results database path
	Limit    int    // 0 = all
	Run      string // run ID
	Scenario string // scenario name
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs",
		Long: `Show runs recorded with 'vvharness run --record'.

Examples:
  vvharness history --limit 5
  vvharness history --run 0192f3c4-...
  vvharness history --scenario user_dict_load`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "results database (overrides VV_RESULTS_DB)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum rows (0 = all)")
	cmd.Flags().StringVar(&opts.Run, "run", "", "show the verdicts of one run")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "show one scenario across runs")
	cmd.MarkFlagsMutuallyExclusive("run", "scenario")

	return cmd
}

// showHistory prints one run (--run), one scenario across runs
// (--scenario), or the most recent runs.
func showHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	cfg, err := opts.config(out)
	if err != nil {
		return err
	}
	path := cfg.ResultsDB
	if cmd.Flags().Changed("db") {
		path = opts.Database
	}

	// Opening would create an empty database.
	if _, err := os.Stat(path); err != nil {
		return commandError(out, ErrCodeNotFound, "no results database", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return commandError(out, ErrCodeStoreFailed, "failed to open results database", err)
	}
	defer st.Close()

	ctx := commandContext(cmd)

	// --run and --scenario are mutually exclusive.
	switch {
	case opts.Run != "":
		// An unknown run is an error, not an empty table.
		if _, err := st.ReadRun(ctx, opts.Run); err != nil {
			if errors.Is(err, store.ErrRunNotFound) {
				return commandError(out, ErrCodeNotFound, "unknown run", err)
			}
			return commandError(out, ErrCodeStoreFailed, "failed to read run", err)
		}
		records, err := st.ReadVerdicts(ctx, opts.Run)
		if err != nil {
			return commandError(out, ErrCodeStoreFailed, "failed to read verdicts", err)
		}
		return printRecords(out, opts.Format, records, false)

	case opts.Scenario != "":
		records, err := st.ReadScenarioHistory(ctx, opts.Scenario, opts.Limit)
		if err != nil {
			return commandError(out, ErrCodeStoreFailed, "failed to read history", err)
		}
		return printRecords(out, opts.Format, records, true)
	}

	runs, err := st.ListRuns(ctx, opts.Limit)
	if err != nil {
		return commandError(out, ErrCodeStoreFailed, "failed to list runs", err)
	}
	if opts.Format == "json" {
		return out.Success(runs)
	}
	t := out.Table("RUN", "STARTED", "SUITE", "PLATFORM", "PASS", "FAIL", "SKIP")
	for _, r := range runs {
		t.AppendRow([]any{r.ID, humanize.Time(r.StartedAt), r.Suite, r.Platform, r.Passed, r.Failed, r.Skipped})
	}
	t.Render()
	return nil
}

// printRecords keys rows by verdict seq, or by run when byRun is set.
func printRecords(out *OutputFormatter, format string, records []store.VerdictRecord, byRun bool) error {
	if format == "json" {
		return out.Success(records)
	}
	first := "SEQ"
	if byRun {
		first = "RUN"
	}
	t := out.Table(first, "SCENARIO", "STATUS", "STAGE", "TIME", "ERROR")
	for _, r := range records {
		var key any = r.Seq
		if byRun {
			key = r.RunID
		}
		t.AppendRow([]any{key, r.Scenario, statusText(r.Status), r.Stage, r.Duration.Round(time.Millisecond), firstLine(r.Error)})
	}
	t.Render()
	return nil
}

// firstLine keeps table cells to one line.
func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
