package harness

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/roach88/vvharness/internal/capi"
	"github.com/roach88/vvharness/internal/capture"
)

// Stream names used in StreamDiff.
const (
	StreamStatus = "status"
	StreamStdout = "stdout"
	StreamStderr = "stderr"
)

// StreamDiff is one mismatching stream.
type StreamDiff struct {
	Scenario string `json:"scenario"`

	// Stream is StreamStatus, StreamStdout or StreamStderr.
	Stream   string `json:"stream"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`

	// Unified is a unified diff of Expected against Actual. It is empty
	// for the status stream and for structural checks.
	Unified string `json:"unified,omitempty"`
}

// MismatchError is returned when captured output differs from expectation.
// It carries every mismatching stream, not just the first.
type MismatchError struct {
	Scenario string
	Diffs    []StreamDiff
}

// Error implements the error interface.
func (e *MismatchError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s (%d stream(s) differ)\n", e.Scenario, len(e.Diffs))
	for _, d := range e.Diffs {
		fmt.Fprintf(&buf, "  [%s]\n", d.Stream)
		// Indent the diff under its stream header.
		if d.Unified != "" {
			for _, line := range strings.SplitAfter(d.Unified, "\n") {
				if line != "" {
					fmt.Fprintf(&buf, "    %s", line)
				}
			}
			if !strings.HasSuffix(d.Unified, "\n") {
				buf.WriteByte('\n')
			}
			continue
		}
		fmt.Fprintf(&buf, "    Expected: %s\n", d.Expected)
		fmt.Fprintf(&buf, "    Actual: %s\n", d.Actual)
	}
	return buf.String()
}

// StdoutMismatch reports stdout that fails a structural check. expected
// describes the shape the check wanted.
func StdoutMismatch(scenario, expected, actual string) *MismatchError {
	return &MismatchError{
		Scenario: scenario,
		Diffs: []StreamDiff{{
			Scenario: scenario,
			Stream:   StreamStdout,
			Expected: expected,
			Actual:   actual,
		}},
	}
}

// Expectation is the expected outcome of a child process.
type Expectation struct {
	// Success requires exit status 0. When false, any non-zero status passes.
	Success bool

	// Stdout and Stderr are compared after normalization.
	Stdout string
	Stderr string
}

// Check compares out against e with exact equality per stream.
func (e Expectation) Check(scenario string, out capture.Output) error {
	var diffs []StreamDiff

	if e.Success != out.Success() {
		want := "exit status 0"
		if !e.Success {
			want = "non-zero exit status"
		}
		diffs = append(diffs, StreamDiff{
			Scenario: scenario,
			Stream:   StreamStatus,
			Expected: want,
			Actual:   "exit status " + strconv.Itoa(out.ExitCode),
		})
	}
	// Every stream is checked so one verdict shows every difference.
	if e.Stdout != out.Stdout {
		diffs = append(diffs, textDiff(scenario, StreamStdout, e.Stdout, out.Stdout))
	}
	if e.Stderr != out.Stderr {
		diffs = append(diffs, textDiff(scenario, StreamStderr, e.Stderr, out.Stderr))
	}

	if len(diffs) == 0 {
		return nil
	}
	return &MismatchError{Scenario: scenario, Diffs: diffs}
}

// textDiff builds a StreamDiff with a unified diff of the two texts.
func textDiff(scenario, stream, expected, actual string) StreamDiff {
	unified, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		B:        difflib.SplitLines(actual),
		FromFile: "expected/" + stream,
		ToFile:   "actual/" + stream,
		Context:  3,
	})
	// Without a diff the raw texts are still reported.
	if err != nil {
		unified = ""
	}
	return StreamDiff{
		Scenario: scenario,
		Stream:   stream,
		Expected: expected,
		Actual:   actual,
		Unified:  unified,
	}
}

// ExpectResult turns an intentionally provoked failure into nil. It returns
// an error if err is nil or carries a different result code.
func ExpectResult(err error, want capi.ResultCode) error {
	if err == nil {
		return fmt.Errorf("expected %s, call succeeded", want)
	}
	if capi.IsResult(err, want) {
		return nil
	}
	if got, ok := capi.ResultCodeOf(err); ok {
		return fmt.Errorf("expected %s, got %s: %w", want, got, err)
	}
	return fmt.Errorf("expected %s: %w", want, err)
}

// Diffs extracts the stream diffs from err, if it is a MismatchError.
func Diffs(err error) []StreamDiff {
	var me *MismatchError
	if errors.As(err, &me) {
		return me.Diffs
	}
	return nil
}
