package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/vvharness/internal/harness"
	"github.com/roach88/vvharness/internal/lifecycle"
)

// ErrRunNotFound is returned when a run ID has no row.
var ErrRunNotFound = errors.New("store: run not found")

// VerdictRecord is a stored verdict. Err is flattened to its message.
type VerdictRecord struct {
	RunID string

	// Seq is the verdict's position within its run, from 1.
	Seq      int
	Scenario string

	// Status is "pass", "fail" or "skip".
	Status string

	// Stage is empty for passing verdicts.
	Stage harness.Stage
	Error string

	// CoreVersion is what the library reported, if it got that far.
	CoreVersion string
	ExitCode    int

	// Stdout and Stderr are the normalized child streams.
	Stdout string
	Stderr string
	Diffs  []harness.StreamDiff

	// Duration is stored at millisecond resolution.
	Duration time.Duration

	// Events is nil in scenario history.
	Events []lifecycle.Event
}

// RunSummary is a run with its verdict counts.
type RunSummary struct {
	Run

	// Counts by verdict status.
	Passed  int
	Failed  int
	Skipped int
}

// ListRuns returns the most recent runs, newest first.
// A limit <= 0 returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	// LIMIT -1 is unlimited in SQLite.
	if limit <= 0 {
		limit = -1
	}

	// Runs without verdicts still appear, with zero counts.
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.seq, r.id, r.suite, r.lib, r.platform, r.started_at,
		       COALESCE(SUM(v.status = 'pass'), 0),
		       COALESCE(SUM(v.status = 'fail'), 0),
		       COALESCE(SUM(v.status = 'skip'), 0)
		FROM runs r
		LEFT JOIN verdicts v ON v.run_id = r.id
		GROUP BY r.seq
		ORDER BY r.seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var rs RunSummary
		var started string
		if err := rows.Scan(&rs.Seq, &rs.ID, &rs.Suite, &rs.Lib, &rs.Platform, &started,
			&rs.Passed, &rs.Failed, &rs.Skipped); err != nil {
			return nil, fmt.Errorf("list runs: scan: %w", err)
		}
		// started_at is stored as RFC 3339 text.
		if rs.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("list runs: run %s: %w", rs.ID, err)
		}
		runs = append(runs, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// ReadRun returns the run with the given ID.
func (s *Store) ReadRun(ctx context.Context, runID string) (Run, error) {
	var run Run
	var started string
	err := s.db.QueryRowContext(ctx, `
		SELECT seq, id, suite, lib, platform, started_at FROM runs WHERE id = ?
	`, runID).Scan(&run.Seq, &run.ID, &run.Suite, &run.Lib, &run.Platform, &started)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run: %w", err)
	}
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", runID, err)
	}
	return run, nil
}

// ReadVerdicts returns the verdicts of a run in seq order, each with its
// handle events in seq order. Unknown runs yield an empty slice.
func (s *Store) ReadVerdicts(ctx context.Context, runID string) ([]VerdictRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, scenario, status, stage, error, core_version, exit_code,
		       stdout, stderr, diffs, duration_ms
		FROM verdicts
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read verdicts: %w", err)
	}

	records := []VerdictRecord{}
	for rows.Next() {
		rec := VerdictRecord{RunID: runID}
		var stage, diffs string
		var durationMS int64
		if err := rows.Scan(&rec.Seq, &rec.Scenario, &rec.Status, &stage, &rec.Error,
			&rec.CoreVersion, &rec.ExitCode, &rec.Stdout, &rec.Stderr, &diffs, &durationMS); err != nil {
			rows.Close()
			return nil, fmt.Errorf("read verdicts: scan: %w", err)
		}
		rec.Stage = harness.Stage(stage)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		// Diffs are stored as canonical JSON.
		if rec.Diffs, err = unmarshalDiffs(diffs); err != nil {
			rows.Close()
			return nil, fmt.Errorf("read verdicts: seq %d: %w", rec.Seq, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("read verdicts: %w", err)
	}
	// Single connection: the cursor must be closed before the next query.
	rows.Close()

	// One query per verdict; runs hold a handful of scenarios.
	for i := range records {
		events, err := s.ReadHandleEvents(ctx, runID, records[i].Seq)
		if err != nil {
			return nil, err
		}
		records[i].Events = events
	}
	return records, nil
}

// ReadHandleEvents returns the ledger events of one verdict in seq order.
func (s *Store) ReadHandleEvents(ctx context.Context, runID string, verdictSeq int) ([]lifecycle.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, op, kind, handle
		FROM handle_events
		WHERE run_id = ? AND verdict_seq = ?
		ORDER BY seq ASC
	`, runID, verdictSeq)
	if err != nil {
		return nil, fmt.Errorf("read handle events: %w", err)
	}
	defer rows.Close()

	events := []lifecycle.Event{}
	for rows.Next() {
		var ev lifecycle.Event
		var op, kind string
		// SQLite integers are signed; handles round-trip through int64.
		var handle int64
		if err := rows.Scan(&ev.Seq, &op, &kind, &handle); err != nil {
			return nil, fmt.Errorf("read handle events: scan: %w", err)
		}
		ev.Op = lifecycle.Op(op)
		ev.Kind = lifecycle.Kind(kind)
		ev.Handle = uint64(handle)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read handle events: %w", err)
	}
	return events, nil
}

// ReadScenarioHistory returns the latest verdicts for scenario across runs,
// newest first, without handle events.
func (s *Store) ReadScenarioHistory(ctx context.Context, scenario string, limit int) ([]VerdictRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.run_id, v.seq, v.status, v.stage, v.error, v.duration_ms
		FROM verdicts v
		JOIN runs r ON r.id = v.run_id
		WHERE v.scenario = ?
		ORDER BY r.seq DESC, v.seq DESC -- newest run first
		LIMIT ?
	`, scenario, limit)
	if err != nil {
		return nil, fmt.Errorf("read scenario history: %w", err)
	}
	defer rows.Close()

	records := []VerdictRecord{}
	for rows.Next() {
		rec := VerdictRecord{Scenario: scenario}
		var stage string
		var durationMS int64
		if err := rows.Scan(&rec.RunID, &rec.Seq, &rec.Status, &stage, &rec.Error, &durationMS); err != nil {
			return nil, fmt.Errorf("read scenario history: scan: %w", err)
		}
		rec.Stage = harness.Stage(stage)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read scenario history: %w", err)
	}
	return records, nil
}
