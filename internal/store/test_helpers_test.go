package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/vvharness/internal/capture"
	"github.com/roach88/vvharness/internal/harness"
	"github.com/roach88/vvharness/internal/lifecycle"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a run with fixed metadata.
func createTestRun() Run {
	return Run{
		Suite:     "smoke",
		Lib:       "/opt/voicevox_core/libvoicevox_core.so",
		Platform:  "linux",
		StartedAt: time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC),
	}
}

func passingVerdict(scenario string) harness.Verdict {
	return harness.Verdict{
		Scenario:    scenario,
		Pass:        true,
		Output:      capture.Output{Stdout: "ok\n"},
		CoreVersion: "0.16.0",
		Duration:    1500 * time.Millisecond,
		Events: []lifecycle.Event{
			{Seq: 1, Op: lifecycle.OpAcquire, Kind: "user_dict", Handle: 0x1010},
			{Seq: 2, Op: lifecycle.OpRelease, Kind: "user_dict", Handle: 0x1010},
		},
	}
}

func failingVerdict(scenario string) harness.Verdict {
	return harness.Verdict{
		Scenario: scenario,
		Stage:    harness.StageAssertion,
		Err:      errors.New("stderr differs"),
		Output:   capture.Output{Stderr: "boom\n", ExitCode: 0},
		Diffs: []harness.StreamDiff{
			{Scenario: scenario, Stream: harness.StreamStderr, Expected: "", Actual: "boom\n"},
		},
	}
}
