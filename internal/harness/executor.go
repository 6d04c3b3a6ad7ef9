package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/roach88/vvharness/internal/capi"
	"github.com/roach88/vvharness/internal/lifecycle"
	"github.com/roach88/vvharness/internal/logging"
)

// Environment variables the runner passes to the child process.
const (
	EnvCase              = "VVHARNESS_CASE"               // scenario descriptor (tag or JSON)
	EnvLib               = "VVHARNESS_LIB"                // path of the library under test
	EnvReport            = "VVHARNESS_REPORT"             // file the child writes its Report to
	EnvFixtures          = "VVHARNESS_FIXTURES"           // Fixtures as JSON
	EnvVersionConstraint = "VVHARNESS_VERSION_CONSTRAINT" // optional semver constraint
)

// Child exit codes. Any other non-zero status means the child died before
// it could report.
const (
	ExitOK        = 0
	ExitLoad      = 10
	ExitExecution = 11
	ExitProtocol  = 12
)

// Fixtures are the on-disk assets scenarios use.
type Fixtures struct {
	SampleVoiceModel    string `json:"sample_voice_model,omitempty"`
	OpenJtalkDicDir     string `json:"open_jtalk_dic_dir,omitempty"`
	OnnxruntimeFilename string `json:"onnxruntime_filename,omitempty"`
}

// Report is what the child hands back to the runner besides its output.
//
// The report travels through a file rather than a stream because both of
// the child's standard streams are under comparison.
type Report struct {
	Scenario string `json:"scenario"`

	// Stage and Error are empty on success.
	Stage Stage  `json:"stage,omitempty"`
	Error string `json:"error,omitempty"`

	// ResultCode names the VOICEVOX result code behind Error, if any.
	ResultCode string `json:"result_code,omitempty"`

	// Events is the handle ledger at exit. Never null.
	Events []lifecycle.Event `json:"events"`

	CoreVersion string `json:"core_version,omitempty"`
}

// ExecEnv is what a Case sees while executing.
type ExecEnv struct {
	// Lib is the library under test, loaded for this run only.
	Lib *capi.Library

	// Scope releases everything the case acquired, in reverse order.
	Scope *lifecycle.Scope

	// Fixtures are the on-disk assets from the runner's configuration.
	Fixtures Fixtures

	// Stdout is the child's standard output.
	Stdout io.Writer

	// Logger never writes to the child's stderr, which is under
	// comparison.
	Logger *slog.Logger
}

// LoadOnnxruntime loads ONNX Runtime using the configured filename, if any.
func (e *ExecEnv) LoadOnnxruntime() (capi.Onnxruntime, error) {
	return e.Lib.LoadOnnxruntime(capi.LoadOnnxruntimeOptions{Filename: e.Fixtures.OnnxruntimeFilename})
}

// Executor is the child side of a scenario run. It loads the library, runs
// one case and writes a Report.
type Executor struct {
	// Registry resolves the scenario tag. Defaults to DefaultRegistry.
	Registry *Registry

	// Open loads the library. Defaults to capi.Open.
	Open func(path string) (*capi.Library, error)

	// Getenv defaults to os.Getenv.
	Getenv func(string) string

	// Stdout defaults to os.Stdout.
	Stdout io.Writer

	// Logger defaults to a discarding logger.
	Logger *slog.Logger
}

// Main runs the case named in the environment and returns the exit code.
func (e *Executor) Main(ctx context.Context) int {
	getenv := e.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	reportPath := getenv(EnvReport)
	if reportPath == "" {
		return ExitProtocol
	}

	report, code := e.run(ctx, getenv)
	if err := writeReport(reportPath, report); err != nil {
		return ExitProtocol
	}
	return code
}

// run does the work of Main and returns the report with its exit code.
func (e *Executor) run(ctx context.Context, getenv func(string) string) (Report, int) {
	logger := e.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	registry := e.Registry
	if registry == nil {
		registry = DefaultRegistry
	}
	open := e.Open
	if open == nil {
		open = capi.Open
	}
	stdout := e.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	// A descriptor or fixtures the runner cannot have produced is a
	// protocol error, not a scenario failure.
	desc, err := ParseDescriptor(getenv(EnvCase))
	if err != nil {
		return Report{Stage: StageLoad, Error: err.Error()}, ExitProtocol
	}
	report := Report{Scenario: desc.Type, Events: []lifecycle.Event{}}

	var fixtures Fixtures
	if raw := getenv(EnvFixtures); raw != "" {
		if err := json.Unmarshal([]byte(raw), &fixtures); err != nil {
			return report.failed(StageLoad, fmt.Errorf("decode fixtures: %w", err)), ExitProtocol
		}
	}

	// Load stage: resolve, open, check the version.
	c, err := registry.Resolve(desc)
	if err != nil {
		return report.failed(StageLoad, err), ExitLoad
	}

	lib, err := open(getenv(EnvLib))
	if err != nil {
		return report.failed(StageLoad, err), ExitLoad
	}
	version, err := lib.CheckVersion(getenv(EnvVersionConstraint))
	if err != nil {
		return report.failed(StageLoad, errors.Join(err, lib.Close())), ExitLoad
	}
	report.CoreVersion = version.Original()
	logger.Debug("library loaded", "path", lib.Path(), "version", report.CoreVersion)

	scope := &lifecycle.Scope{}
	env := &ExecEnv{
		Lib:      lib,
		Scope:    scope,
		Fixtures: fixtures,
		Stdout:   stdout,
		Logger:   logger.With("scenario", c.Name()),
	}

	// Execution stage. Releases, the leak check and the unload all run
	// whatever the case returned, and every failure among them is kept.
	execErr := execCase(ctx, c, env)
	releaseErr := scope.Close()
	leakErr := lib.Ledger().Verify()
	report.Events = lib.Ledger().Events()
	closeErr := lib.Close()

	if err := errors.Join(execErr, releaseErr, leakErr, closeErr); err != nil {
		return report.failed(StageExecution, err), ExitExecution
	}
	return report, ExitOK
}

// execCase runs c, converting a panic into an error so the scope still
// releases what was acquired.
func execCase(ctx context.Context, c Case, env *ExecEnv) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", c.Name(), r)
		}
	}()
	return c.Exec(ctx, env)
}

// failed records err against stage, with its result code when it has one.
func (r Report) failed(stage Stage, err error) Report {
	r.Stage = stage
	r.Error = err.Error()
	if code, ok := capi.ResultCodeOf(err); ok {
		r.ResultCode = code.String()
	}
	return r
}

// writeReport stores r as JSON, readable by the owner only.
func writeReport(path string, r Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// readReport loads the child's report. An empty file means the child died
// before writing one.
func readReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty report")
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}
