package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/vvharness/internal/harness"
	"github.com/roach88/vvharness/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Suite    string        // YAML suite file
	Lib      string        // library under test
	Platform string        // platform for masks and snapshots
	Parallel int           // concurrent child processes
	FailFast bool          // skip the rest after a failure
	Timeout  time.Duration // per-scenario limit
	Record   bool          // store verdicts
	Database string        // results database path
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	RunID    string            `json:"run_id,omitempty"` // set with --record
	Suite    string            `json:"suite,omitempty"`
	Lib      string            `json:"lib"`
	Platform string            `json:"platform"`
	Verdicts []harness.Verdict `json:"verdicts"`
	Summary  harness.Summary   `json:"summary"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [scenario...]",
		Short: "Run scenarios against the library",
		Long: `Run scenarios, each in a fresh child process, and compare their normalized
output with the snapshots.

A scenario is a registered tag or a JSON descriptor such as
'{"type":"user_dict_load","style_id":0}'. Without arguments the scenarios
of --suite run, or every registered scenario.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed or were skipped
  2 - Command error (missing library, bad suite file, etc.)

Examples:
  vvharness run
  vvharness run user_dict_load --lib ./libvoicevox_core.so
  vvharness run --suite ./suites/smoke.yaml --parallel 4 --record
  vvharness run --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Suite, "suite", "", "YAML suite file")
	cmd.Flags().StringVar(&opts.Lib, "lib", "", "library under test (overrides VV_CDYLIB_PATH)")
	cmd.Flags().StringVar(&opts.Platform, "platform", "", "platform for masks and snapshots (overrides VV_PLATFORM)")
	cmd.Flags().IntVarP(&opts.Parallel, "parallel", "j", 0, "concurrent child processes (overrides VV_PARALLEL)")
	cmd.Flags().BoolVar(&opts.FailFast, "fail-fast", false, "skip remaining scenarios after the first failure")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "per-scenario timeout (overrides VV_TIMEOUT_SEC)")
	cmd.Flags().BoolVar(&opts.Record, "record", false, "store verdicts in the results database")
	cmd.Flags().StringVar(&opts.Database, "db", "", "results database (overrides VV_RESULTS_DB)")

	return cmd
}

// runScenarios resolves settings, runs every selected scenario in its own
// child process and reports the verdicts. Any failed or skipped scenario
// exits with ExitFailure.
func runScenarios(opts *RunOptions, args []string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	cfg, err := opts.config(out)
	if err != nil {
		return err
	}
	fs := opts.fs()

	// A suite supplies the scenario list and run settings.
	var suite *harness.Suite
	if opts.Suite != "" {
		suite, err = harness.LoadSuite(fs, opts.Suite)
		if err != nil {
			return commandError(out, ErrCodeLoadFailed, "failed to load suite", err)
		}
		if err := suite.Check(harness.DefaultRegistry); err != nil {
			return commandError(out, ErrCodeLoadFailed, fmt.Sprintf("suite %s", suite.Name), err)
		}
	}

	// Precedence: flag, then suite, then environment.
	flags := cmd.Flags()
	lib := cfg.CdylibPath
	if flags.Changed("lib") {
		lib = opts.Lib
	}
	if lib == "" {
		return commandError(out, ErrCodeConfig, "no library under test: set VV_CDYLIB_PATH or --lib", nil)
	}
	platform := cfg.Platform
	if flags.Changed("platform") {
		platform = opts.Platform
	}
	parallel, failFast, timeout := cfg.Parallel, false, cfg.Timeout()
	if suite != nil {
		if suite.Parallel > 0 {
			parallel = suite.Parallel
		}
		failFast = suite.FailFast
		if suite.Timeout > 0 {
			timeout = suite.Timeout
		}
	}
	if flags.Changed("parallel") {
		parallel = opts.Parallel
	}
	if flags.Changed("fail-fast") {
		failFast = opts.FailFast
	}
	if flags.Changed("timeout") {
		timeout = opts.Timeout
	}
	if flags.Changed("db") {
		cfg.ResultsDB = opts.Database
	}

	// Positional tags win over the suite's list.
	descs, err := descriptors(args, suite)
	if err != nil {
		return commandError(out, ErrCodeGeneric, "invalid scenario", err)
	}

	// Rules and snapshots are loaded once and shared by every scenario.
	rules, err := cfg.RuleSet(fs)
	if err != nil {
		return commandError(out, ErrCodeLoadFailed, "failed to load mask rules", err)
	}
	snaps, err := loadSnapshots(fs, cfg.Snapshots)
	if err != nil {
		return commandError(out, ErrCodeLoadFailed, "failed to load snapshots", err)
	}
	// Children re-exec this binary.
	self, err := opts.selfCommand()
	if err != nil {
		return commandError(out, ErrCodeGeneric, "cannot start child processes", err)
	}

	logger := opts.logger(out.GetErrWriter(), cfg)

	// Missing fixtures fail the scenarios that need them; list them up front.
	preflight := *cfg
	preflight.CdylibPath = lib
	if err := preflight.RequirePaths(fs); err != nil {
		logger.Warn("preflight", "err", err)
	}
	out.VerboseLog("running %d scenario(s) against %s on %s (parallel %d)", len(descs), lib, platform, parallel)

	runner := &harness.Runner{
		Self:              self,
		Lib:               lib,
		VersionConstraint: cfg.CoreVersionConstraint,
		Fixtures:          cfg.Fixtures(),
		Rules:             rules,
		Snapshots:         snaps,
		Platform:          platform,
		Parallel:          parallel,
		FailFast:          failFast,
		Timeout:           timeout,
		Logger:            logger,
	}

	// Interrupts cancel the run; children are killed by capture.
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	verdicts := runner.RunAll(ctx, descs)
	summary := harness.Summarize(verdicts)

	result := RunResult{
		Lib:      lib,
		Platform: platform,
		Verdicts: verdicts,
		Summary:  summary,
	}
	if suite != nil {
		result.Suite = suite.Name
	}

	// Recording happens after every scenario has finished.
	if opts.Record {
		run, err := record(ctx, cfg.ResultsDB, store.Run{
			Suite:     result.Suite,
			Lib:       lib,
			Platform:  platform,
			StartedAt: started,
		}, verdicts)
		if err != nil {
			return commandError(out, ErrCodeStoreFailed, "failed to record run", err)
		}
		result.RunID = run.ID
		logger.Info("run recorded", "run_id", run.ID, "db", cfg.ResultsDB)
	}

	// In json mode failures show in status; the envelope is for command
	// errors.
	if opts.Format == "json" {
		status := "ok"
		if !summary.OK() {
			status = "fail"
		}
		if err := out.Result(status, result); err != nil {
			return err
		}
	} else {
		printVerdicts(out, result, time.Since(started))
	}

	if !summary.OK() {
		return NewExitError(ExitFailure,
			fmt.Sprintf("%d scenario(s) failed, %d skipped", summary.Failed, summary.Skipped))
	}
	return nil
}

// commandContext returns the command's context, or Background when cobra
// was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// record writes the run to the database at path in one transaction.
func record(ctx context.Context, path string, run store.Run, verdicts []harness.Verdict) (store.Run, error) {
	st, err := store.Open(path)
	if err != nil {
		return store.Run{}, err
	}
	run, err = st.RecordRun(ctx, run, verdicts)
	return run, errors.Join(err, st.Close())
}

// printVerdicts renders one row per scenario and a summary line.
func printVerdicts(out *OutputFormatter, result RunResult, elapsed time.Duration) {
	t := out.Table("SCENARIO", "STATUS", "STAGE", "TIME", "OUTPUT")
	for _, v := range result.Verdicts {
		stage := string(v.Stage)
		if stage == "" {
			stage = "-"
		}
		size := uint64(len(v.Output.Stdout) + len(v.Output.Stderr))
		t.AppendRow([]any{v.Scenario, statusText(v.Status()), stage, v.Duration.Round(time.Millisecond), humanize.Bytes(size)})
	}
	t.Render()

	for _, v := range result.Verdicts {
		if v.Err == nil {
			continue
		}
		fmt.Fprintf(out.Writer, "\n%s %s\n", statusText(v.Status()), v.Scenario)
		for _, line := range strings.Split(strings.TrimRight(v.Err.Error(), "\n"), "\n") {
			fmt.Fprintf(out.Writer, "  %s\n", line)
		}
	}

	s := result.Summary
	fmt.Fprintf(out.Writer, "\n%d passed, %d failed, %d skipped in %s\n",
		s.Passed, s.Failed, s.Skipped, elapsed.Round(time.Millisecond))
	if result.RunID != "" {
		fmt.Fprintf(out.Writer, "recorded as run %s\n", result.RunID)
	}
}
