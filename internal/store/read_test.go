package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vvharness/internal/harness"
)

func TestRecordRun_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	skipped := harness.Verdict{Scenario: "global_info", Skipped: true}
	run, err := s.RecordRun(ctx, createTestRun(), []harness.Verdict{
		passingVerdict("user_dict_load"),
		failingVerdict("user_dict_manipulate"),
		skipped,
	})
	require.NoError(t, err)

	got, err := s.ReadRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "smoke", got.Suite)
	assert.True(t, got.StartedAt.Equal(createTestRun().StartedAt))

	records, err := s.ReadVerdicts(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, records, 3)

	pass := records[0]
	assert.Equal(t, 1, pass.Seq)
	assert.Equal(t, "user_dict_load", pass.Scenario)
	assert.Equal(t, "pass", pass.Status)
	assert.Equal(t, harness.StageNone, pass.Stage)
	assert.Equal(t, "0.16.0", pass.CoreVersion)
	assert.Equal(t, "ok\n", pass.Stdout)
	assert.Equal(t, 1500*time.Millisecond, pass.Duration)
	assert.Empty(t, pass.Diffs)
	assert.Equal(t, passingVerdict("x").Events, pass.Events)

	failed := records[1]
	assert.Equal(t, "fail", failed.Status)
	assert.Equal(t, harness.StageAssertion, failed.Stage)
	assert.Equal(t, "stderr differs", failed.Error)
	assert.Equal(t, "boom\n", failed.Stderr)
	assert.Equal(t, failingVerdict("user_dict_manipulate").Diffs, failed.Diffs)
	assert.Empty(t, failed.Events)

	assert.Equal(t, "skip", records[2].Status)
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestReadVerdicts_UnknownRunIsEmpty(t *testing.T) {
	s := createTestStore(t)

	records, err := s.ReadVerdicts(context.Background(), "nope")
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestListRuns_NewestFirstWithCounts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first, err := s.RecordRun(ctx, createTestRun(), []harness.Verdict{passingVerdict("a")})
	require.NoError(t, err)
	second, err := s.RecordRun(ctx, createTestRun(), []harness.Verdict{
		passingVerdict("a"),
		failingVerdict("b"),
		{Scenario: "c", Skipped: true},
	})
	require.NoError(t, err)
	empty, err := s.CreateRun(ctx, createTestRun())
	require.NoError(t, err)

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	assert.Equal(t, empty.ID, runs[0].ID)
	assert.Zero(t, runs[0].Passed+runs[0].Failed+runs[0].Skipped)

	assert.Equal(t, second.ID, runs[1].ID)
	assert.Equal(t, 1, runs[1].Passed)
	assert.Equal(t, 1, runs[1].Failed)
	assert.Equal(t, 1, runs[1].Skipped)

	assert.Equal(t, first.ID, runs[2].ID)
	assert.Equal(t, 1, runs[2].Passed)

	limited, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestReadScenarioHistory(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.RecordRun(ctx, createTestRun(), []harness.Verdict{passingVerdict("a")})
	require.NoError(t, err)
	latest, err := s.RecordRun(ctx, createTestRun(), []harness.Verdict{failingVerdict("a")})
	require.NoError(t, err)

	history, err := s.ReadScenarioHistory(ctx, "a", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, latest.ID, history[0].RunID)
	assert.Equal(t, "fail", history[0].Status)
	assert.Equal(t, "pass", history[1].Status)
}
