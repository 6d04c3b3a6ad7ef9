package harness

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/vvharness/internal/capture"
	"github.com/roach88/vvharness/internal/lifecycle"
)

// Stage names the point at which a scenario failed.
type Stage string

const (
	StageNone Stage = ""

	// StageLoad covers resolving the tag, opening the library, binding
	// its symbols and checking its version.
	StageLoad Stage = "load"

	// StageExecution covers the case body and the releases after it,
	// including leak detection.
	StageExecution Stage = "execution"

	// StageCapture covers spawning the child and reading its report.
	StageCapture Stage = "capture"

	// StageAssertion covers comparing normalized output with snapshots.
	StageAssertion Stage = "assertion"
)

// StageError attributes a scenario failure to a stage.
type StageError struct {
	Scenario string
	Stage    Stage

	// Err is the underlying failure. For assertion failures it is a
	// *MismatchError.
	Err error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Scenario, e.Stage, e.Err)
}

// Unwrap returns the underlying failure for errors.Is and errors.As.
func (e *StageError) Unwrap() error { return e.Err }

// StageOf returns the stage recorded in err, or StageNone.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return StageNone
}

// Verdict is the outcome of one scenario run.
type Verdict struct {
	// Scenario is the tag of the scenario that ran.
	Scenario string

	// Pass is true only if every stage succeeded.
	Pass bool

	// Skipped is set for scenarios never started because an earlier one
	// failed under fail-fast.
	Skipped bool

	// Stage is the failed stage. Empty when Pass is true.
	Stage Stage

	// Err describes the failure. Nil when Pass is true.
	Err error

	// Diffs holds one entry per mismatching stream for assertion failures.
	Diffs []StreamDiff

	// Output is the normalized output the assertion saw.
	Output capture.Output

	// Events is the child's handle ledger, in seq order.
	Events []lifecycle.Event

	// CoreVersion is the version string the library reported.
	CoreVersion string

	// Duration is wall time spent in the child process.
	Duration time.Duration
}

// Status is a one-word summary: pass, fail or skip.
func (v Verdict) Status() string {
	switch {
	case v.Skipped:
		return "skip"
	case v.Pass:
		return "pass"
	default:
		return "fail"
	}
}

// verdictJSON is the wire form of a Verdict: the error flattened to its
// message and the duration in whole milliseconds.
type verdictJSON struct {
	Scenario    string            `json:"scenario"`
	Status      string            `json:"status"`
	Stage       Stage             `json:"stage,omitempty"`
	Error       string            `json:"error,omitempty"`
	Diffs       []StreamDiff      `json:"diffs,omitempty"`
	Output      capture.Output    `json:"output"`
	Events      []lifecycle.Event `json:"events,omitempty"`
	CoreVersion string            `json:"core_version,omitempty"`
	DurationMS  int64             `json:"duration_ms"`
}

// MarshalJSON renders the verdict for machine consumption.
func (v Verdict) MarshalJSON() ([]byte, error) {
	out := verdictJSON{
		Scenario:    v.Scenario,
		Status:      v.Status(),
		Stage:       v.Stage,
		Diffs:       v.Diffs,
		Output:      v.Output,
		Events:      v.Events,
		CoreVersion: v.CoreVersion,
		DurationMS:  v.Duration.Milliseconds(),
	}
	if v.Err != nil {
		out.Error = v.Err.Error()
	}
	return json.Marshal(out)
}

// fail builds a failed verdict for stage.
func fail(scenario string, stage Stage, err error) Verdict {
	return Verdict{
		Scenario: scenario,
		Stage:    stage,
		Err:      &StageError{Scenario: scenario, Stage: stage, Err: err},
	}
}
