package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/vvharness/internal/harness"
	"github.com/roach88/vvharness/internal/lifecycle"
)

// Run is one invocation of the runner.
type Run struct {
	// ID is a UUIDv7, so IDs sort by creation time.
	ID string

	// Seq is the row id; it orders runs in listings.
	Seq int64

	// Suite is empty for ad hoc runs.
	Suite    string
	Lib      string
	Platform string

	// StartedAt is stored in UTC.
	StartedAt time.Time
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// CreateRun inserts a run and returns it with ID and Seq assigned.
// A zero StartedAt is replaced with the current time.
func (s *Store) CreateRun(ctx context.Context, run Run) (Run, error) {
	return createRun(ctx, s.db, run)
}

// createRun is CreateRun against db or an open transaction.
func createRun(ctx context.Context, db execer, run Run) (Run, error) {
	if run.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return Run{}, fmt.Errorf("create run: %w", err)
		}
		run.ID = id.String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	// Text timestamps compare correctly only in a single zone.
	run.StartedAt = run.StartedAt.UTC()

	res, err := db.ExecContext(ctx, `
		INSERT INTO runs (id, suite, lib, platform, started_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Suite,
		run.Lib,
		run.Platform,
		run.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}

	run.Seq, err = res.LastInsertId()
	if err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

// WriteVerdict inserts the verdict at position seq of run runID, together
// with its handle events.
//
// Note: The run referenced by runID must exist (foreign key constraint).
func (s *Store) WriteVerdict(ctx context.Context, runID string, seq int, v harness.Verdict) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write verdict: %w", err)
	}
	if err := writeVerdict(ctx, tx, runID, seq, v); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write verdict: %w", err)
	}
	return nil
}

// writeVerdict is WriteVerdict against db or an open transaction. Diffs are
// stored as canonical JSON.
func writeVerdict(ctx context.Context, db execer, runID string, seq int, v harness.Verdict) error {
	diffsJSON, err := marshalDiffs(v.Diffs)
	if err != nil {
		return fmt.Errorf("write verdict: %w", err)
	}

	// The error chain is flattened; only its message survives.
	var errText string
	if v.Err != nil {
		errText = v.Err.Error()
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO verdicts
		(run_id, seq, scenario, status, stage, error, core_version, exit_code, stdout, stderr, diffs, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		seq,
		v.Scenario,
		v.Status(),
		string(v.Stage),
		errText,
		v.CoreVersion,
		v.Output.ExitCode,
		v.Output.Stdout,
		v.Output.Stderr,
		diffsJSON,
		v.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("write verdict: %w", err)
	}

	return writeHandleEvents(ctx, db, runID, seq, v.Events)
}

// WriteHandleEvents appends ledger events to the verdict at (runID, verdictSeq).
func (s *Store) WriteHandleEvents(ctx context.Context, runID string, verdictSeq int, events []lifecycle.Event) error {
	return writeHandleEvents(ctx, s.db, runID, verdictSeq, events)
}

// writeHandleEvents inserts one row per event, keeping the ledger's seq.
func writeHandleEvents(ctx context.Context, db execer, runID string, verdictSeq int, events []lifecycle.Event) error {
	for _, ev := range events {
		_, err := db.ExecContext(ctx, `
			INSERT INTO handle_events (run_id, verdict_seq, seq, op, kind, handle)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			runID,
			verdictSeq,
			ev.Seq,
			string(ev.Op),
			string(ev.Kind),
			int64(ev.Handle),
		)
		if err != nil {
			return fmt.Errorf("write handle event %d: %w", ev.Seq, err)
		}
	}
	return nil
}

// RecordRun stores a run and all its verdicts in one transaction. Verdicts
// get seq 1..n in slice order.
func (s *Store) RecordRun(ctx context.Context, run Run, verdicts []harness.Verdict) (Run, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}

	run, err = createRun(ctx, tx, run)
	if err != nil {
		return Run{}, errors.Join(err, tx.Rollback())
	}
	// A failed verdict write leaves no partial run behind.
	for i, v := range verdicts {
		if err := writeVerdict(ctx, tx, run.ID, i+1, v); err != nil {
			return Run{}, errors.Join(err, tx.Rollback())
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}
	return run, nil
}
