package harness

import (
	"encoding/json"
	"testing"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
	"github.com/sebdah/goldie/v2"

	"github.com/roach88/vvharness/internal/capture"
	"github.com/roach88/vvharness/internal/lifecycle"
)

// CanonicalJSON rewrites a JSON document in RFC 8785 canonical form: sorted
// members, no insignificant whitespace, canonical numbers and strings.
func CanonicalJSON(data []byte) ([]byte, error) {
	return jsoncanonicalizer.Transform(data)
}

// VerdictSnapshot is the reproducible part of a Verdict. Durations, error
// text and the core version are left out.
type VerdictSnapshot struct {
	Scenario string            `json:"scenario"`
	Status   string            `json:"status"`
	Stage    Stage             `json:"stage,omitempty"`
	Output   capture.Output    `json:"output"`
	Events   []lifecycle.Event `json:"events,omitempty"`
	Diffs    []StreamDiff      `json:"diffs,omitempty"`
}

// Snapshot returns the reproducible part of v.
func (v Verdict) Snapshot() VerdictSnapshot {
	return VerdictSnapshot{
		Scenario: v.Scenario,
		Status:   v.Status(),
		Stage:    v.Stage,
		Output:   v.Output,
		Events:   v.Events,
		Diffs:    v.Diffs,
	}
}

// AssertGolden compares the verdict's snapshot, as canonical JSON, against
// testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./... -update
func AssertGolden(t *testing.T, name string, v Verdict) {
	t.Helper()

	data, err := json.Marshal(v.Snapshot())
	if err != nil {
		t.Fatalf("marshal verdict: %v", err)
	}
	canonical, err := CanonicalJSON(data)
	if err != nil {
		t.Fatalf("canonicalize verdict: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, canonical)
}
