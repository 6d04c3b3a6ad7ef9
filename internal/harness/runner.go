package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/vvharness/internal/capture"
	"github.com/roach88/vvharness/internal/logging"
	"github.com/roach88/vvharness/internal/normalize"
	"github.com/roach88/vvharness/internal/snapshot"
)

// Runner executes scenarios, each in its own child process.
//
// A Runner holds no per-run state and may be shared by concurrent calls.
type Runner struct {
	// Registry resolves descriptors. Defaults to DefaultRegistry. The child
	// must register the same scenarios.
	Registry *Registry

	// Self is the command line that starts the child side (a process that
	// calls Executor.Main). Self[0] is the executable.
	Self []string

	// Env holds extra KEY=VALUE pairs for the child.
	Env []string

	// Lib is the path of the library under test.
	Lib string

	// VersionConstraint, when set, is checked by the child after loading.
	VersionConstraint string

	// Fixtures are passed to the child as JSON.
	Fixtures Fixtures

	// Rules masks captured output. Nil applies no masks.
	Rules *normalize.RuleSet

	// Snapshots holds expected output. Nil is an empty store.
	Snapshots *snapshot.Store

	// Platform selects platform-qualified rules and snapshots. Defaults to
	// runtime.GOOS.
	Platform string

	// Parallel bounds concurrent children in RunAll. Zero means one.
	Parallel int

	// FailFast makes RunAll skip scenarios not yet started once one fails.
	FailFast bool

	// Timeout bounds each child process. Zero means no limit.
	Timeout time.Duration

	// Logger receives one line per scenario. Defaults to discarding.
	Logger *slog.Logger
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return logging.Discard()
	}
	return r.Logger
}

func (r *Runner) platform() string {
	if r.Platform == "" {
		return runtime.GOOS
	}
	return r.Platform
}

func (r *Runner) registry() *Registry {
	if r.Registry == nil {
		return DefaultRegistry
	}
	return r.Registry
}

// Run executes one scenario and reports its verdict. Failures of any stage
// are reported in the verdict, never returned.
func (r *Runner) Run(ctx context.Context, d Descriptor) Verdict {
	logger := r.logger().With("scenario", d.Type)
	logger.Debug("scenario starting")

	v := r.run(ctx, d)

	if v.Pass {
		logger.Info("scenario passed", "duration", v.Duration)
	} else {
		logger.Warn("scenario failed", "stage", v.Stage, "error", v.Err)
	}
	return v
}

// run walks one scenario through its stages. The parent resolves the tag
// as well so that an unknown tag fails at load without spawning a child.
func (r *Runner) run(ctx context.Context, d Descriptor) Verdict {
	c, err := r.registry().Resolve(d)
	if err != nil {
		return fail(d.Type, StageLoad, err)
	}
	name := c.Name()

	if len(r.Self) == 0 {
		return fail(name, StageCapture, errors.New("runner: no child command configured"))
	}

	reportPath, cleanup, err := reportFile()
	if err != nil {
		return fail(name, StageCapture, err)
	}
	defer cleanup()

	env, err := r.childEnv(d, reportPath)
	if err != nil {
		return fail(name, StageCapture, err)
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	// Capture stage.
	start := time.Now()
	raw, err := capture.Run(ctx, capture.Command{
		Path: r.Self[0],
		Args: r.Self[1:],
		Env:  env,
	})
	elapsed := time.Since(start)

	// Masks apply before anything looks at the output, failures included,
	// so that stored verdicts carry the normalized text.
	platform := r.platform()
	out := raw
	if r.Rules != nil {
		out = r.Rules.Normalize(raw, platform)
	}

	if err != nil {
		v := fail(name, StageCapture, err)
		v.Output, v.Duration = out, elapsed
		return v
	}

	// No report after a non-zero exit means the child crashed while
	// executing; after a clean exit it broke the protocol.
	report, err := readReport(reportPath)
	if err != nil {
		stage := StageCapture
		if !raw.Success() {
			stage = StageExecution
		}
		v := fail(name, stage, fmt.Errorf("child exited with status %d without a usable report: %w", raw.ExitCode, err))
		v.Output, v.Duration = out, elapsed
		return v
	}

	v := Verdict{
		Scenario:    name,
		Output:      out,
		Events:      report.Events,
		CoreVersion: report.CoreVersion,
		Duration:    elapsed,
	}
	// The child already failed a stage; its report says which.
	if report.Stage != StageNone {
		v.Stage = report.Stage
		v.Err = &StageError{Scenario: name, Stage: report.Stage, Err: errors.New(report.Error)}
		return v
	}

	// Assertion stage.
	snaps := r.Snapshots
	if snaps == nil {
		snaps = &snapshot.Store{}
	}
	if err := c.AssertOutput(out, snaps.For(platform)); err != nil {
		v.Stage = StageAssertion
		v.Err = &StageError{Scenario: name, Stage: StageAssertion, Err: err}
		v.Diffs = Diffs(err)
		return v
	}

	v.Pass = true
	return v
}

// childEnv returns Env followed by the protocol variables, which capture
// layers over the runner's own environment.
func (r *Runner) childEnv(d Descriptor, reportPath string) ([]string, error) {
	desc, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode descriptor: %w", err)
	}
	fixtures, err := json.Marshal(r.Fixtures)
	if err != nil {
		return nil, fmt.Errorf("encode fixtures: %w", err)
	}
	return append(slices.Clone(r.Env),
		EnvCase+"="+string(desc),
		EnvLib+"="+r.Lib,
		EnvReport+"="+reportPath,
		EnvFixtures+"="+string(fixtures),
		EnvVersionConstraint+"="+r.VersionConstraint,
	), nil
}

// reportFile creates an empty file for the child's report and returns a
// cleanup that removes it.
func reportFile() (string, func(), error) {
	f, err := os.CreateTemp("", "vvharness-report-*.json")
	if err != nil {
		return "", nil, fmt.Errorf("create report file: %w", err)
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", nil, fmt.Errorf("create report file: %w", err)
	}
	return path, func() { os.Remove(path) }, nil
}

// RunAll runs every descriptor and returns verdicts in input order. At most
// Parallel children run at once.
func (r *Runner) RunAll(ctx context.Context, descs []Descriptor) []Verdict {
	verdicts := make([]Verdict, len(descs))

	var g errgroup.Group
	g.SetLimit(max(1, r.Parallel))

	// Scenarios already running when one fails still finish; only those
	// not yet started are skipped.
	var failed atomic.Bool
	for i, d := range descs {
		g.Go(func() error {
			if r.FailFast && failed.Load() {
				verdicts[i] = Verdict{Scenario: d.Type, Skipped: true}
				return nil
			}
			verdicts[i] = r.Run(ctx, d)
			if !verdicts[i].Pass {
				failed.Store(true)
			}
			return nil
		})
	}
	_ = g.Wait() // workers never return errors
	return verdicts
}

// Summary counts verdicts by status.
type Summary struct {
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Summarize counts verdicts by status.
func Summarize(verdicts []Verdict) Summary {
	var s Summary
	for _, v := range verdicts {
		switch v.Status() {
		case "pass":
			s.Passed++
		case "skip":
			s.Skipped++
		default:
			s.Failed++
		}
	}
	return s
}

// OK reports whether every scenario passed.
func (s Summary) OK() bool {
	return s.Failed == 0 && s.Skipped == 0
}
