package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/vvharness/internal/harness"
)

// marshalDiffs serializes stream diffs to canonical JSON (RFC 8785).
// A nil slice is stored as an empty array.
func marshalDiffs(diffs []harness.StreamDiff) (string, error) {
	if diffs == nil {
		diffs = []harness.StreamDiff{}
	}
	data, err := json.Marshal(diffs)
	if err != nil {
		return "", fmt.Errorf("marshal diffs: %w", err)
	}
	canonical, err := harness.CanonicalJSON(data)
	if err != nil {
		return "", fmt.Errorf("canonicalize diffs: %w", err)
	}
	return string(canonical), nil
}

// unmarshalDiffs decodes a diffs column. An empty column is no diffs.
func unmarshalDiffs(s string) ([]harness.StreamDiff, error) {
	diffs := []harness.StreamDiff{}
	if s == "" {
		return diffs, nil
	}
	if err := json.Unmarshal([]byte(s), &diffs); err != nil {
		return nil, fmt.Errorf("unmarshal diffs: %w", err)
	}
	return diffs, nil
}
