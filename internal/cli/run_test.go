package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vvharness/internal/harness"
)

type runResponse struct {
	Status string `json:"status"`
	Data   struct {
		RunID    string `json:"run_id"`
		Suite    string `json:"suite"`
		Platform string `json:"platform"`
		Verdicts []struct {
			Scenario string        `json:"scenario"`
			Status   string        `json:"status"`
			Stage    harness.Stage `json:"stage"`
			Error    string        `json:"error"`
		} `json:"verdicts"`
		Summary harness.Summary `json:"summary"`
	} `json:"data"`
}

func decodeRun(t *testing.T, stdout string) runResponse {
	t.Helper()
	var resp runResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), "stdout: %s", stdout)
	return resp
}

func TestRun_AllBuiltinScenarios(t *testing.T) {
	res := execute(t, fakeOptions(t), "", "run", "--format", "json", "-j", "2")
	require.NoError(t, res.err, "stderr: %s", res.stderr)

	resp := decodeRun(t, res.stdout)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "linux", resp.Data.Platform)
	assert.Empty(t, resp.Data.RunID)
	assert.Equal(t, harness.Summary{Passed: 4}, resp.Data.Summary)

	var got []string
	for _, v := range resp.Data.Verdicts {
		got = append(got, v.Scenario)
		assert.Equal(t, "pass", v.Status, "%s: %s", v.Scenario, v.Error)
	}
	assert.Equal(t, builtinTags, got)
}

func TestRun_TextTable(t *testing.T) {
	res := execute(t, fakeOptions(t), "", "run", "user_dict_load")
	require.NoError(t, res.err, "stderr: %s", res.stderr)

	assert.Contains(t, res.stdout, "SCENARIO")
	assert.Contains(t, res.stdout, "user_dict_load")
	assert.Contains(t, res.stdout, "1 passed, 0 failed, 0 skipped")
}

func TestRun_DescriptorArgument(t *testing.T) {
	res := execute(t, fakeOptions(t), "", "run", "--format", "json", `{"type":"user_dict_load","style_id":99}`)
	require.Error(t, res.err)
	assert.Equal(t, ExitFailure, res.code())

	resp := decodeRun(t, res.stdout)
	assert.Equal(t, "fail", resp.Status)
	require.Len(t, resp.Data.Verdicts, 1)
	assert.Equal(t, harness.StageExecution, resp.Data.Verdicts[0].Stage)
}

func TestRun_UnknownTagIsLoadFailure(t *testing.T) {
	res := execute(t, fakeOptions(t), "", "run", "--format", "json", "no_such_scenario")
	assert.Equal(t, ExitFailure, res.code())

	resp := decodeRun(t, res.stdout)
	require.Len(t, resp.Data.Verdicts, 1)
	assert.Equal(t, harness.StageLoad, resp.Data.Verdicts[0].Stage)
	assert.Contains(t, resp.Data.Verdicts[0].Error, "no_such_scenario")
}

func TestRun_SnapshotOverrideMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.toml")
	require.NoError(t, os.WriteFile(path, []byte("[user_dict_manipulate]\nstdout = \"nope\\n\"\n"), 0o644))

	res := execute(t, fakeOptions(t, "VV_SNAPSHOTS="+path), "", "run", "user_dict_manipulate")
	assert.Equal(t, ExitFailure, res.code())
	assert.ErrorContains(t, res.err, "1 scenario(s) failed")
	assert.Contains(t, res.stdout, "Assertion failed: user_dict_manipulate")
	assert.Contains(t, res.stdout, "-nope")
}

func TestRun_NoLibrary(t *testing.T) {
	res := execute(t, &RootOptions{Environ: []string{}}, "", "run", "global_info")
	assert.Equal(t, ExitCommandError, res.code())
	assert.ErrorContains(t, res.err, "no library under test")
}

func decodeError(t *testing.T, stdout string) CLIError {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), "stdout: %s", stdout)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	return *resp.Error
}

func TestRun_JSONCommandErrors(t *testing.T) {
	res := execute(t, &RootOptions{Environ: []string{}}, "", "run", "--format", "json", "global_info")
	assert.Equal(t, ExitCommandError, res.code())
	assert.Equal(t, ErrCodeConfig, decodeError(t, res.stdout).Code)

	path := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: broken\nscenarios: [nope]\n"), 0o644))
	res = execute(t, fakeOptions(t), "", "run", "--format", "json", "--suite", path)
	assert.Equal(t, ExitCommandError, res.code())
	e := decodeError(t, res.stdout)
	assert.Equal(t, ErrCodeUnknownTag, e.Code)
	assert.Contains(t, e.Details, "nope")

	res = execute(t, fakeOptions(t, "VV_PARALLEL=-1"), "", "run", "--format", "json")
	assert.Equal(t, ExitCommandError, res.code())
	assert.Equal(t, ErrCodeConfig, decodeError(t, res.stdout).Code)
}

func TestRun_PreflightWarnsAboutMissingFixtures(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.vvm")
	res := execute(t, fakeOptions(t, "VV_SAMPLE_VOICE_MODEL="+missing), "", "run", "-v", "global_info")
	require.NoError(t, res.err, "stderr: %s", res.stderr)

	assert.Contains(t, res.stderr, "preflight")
	assert.Contains(t, res.stderr, "VV_SAMPLE_VOICE_MODEL")
	assert.Contains(t, res.stderr, "running 1 scenario(s) against "+fakeLib)
}

func TestRun_LibFlagOverridesEnvironment(t *testing.T) {
	opts := fakeOptions(t)
	res := execute(t, opts, "", "run", "--format", "json", "--lib", filepath.Join(t.TempDir(), "missing.so"), "global_info")
	assert.Equal(t, ExitFailure, res.code())

	resp := decodeRun(t, res.stdout)
	require.Len(t, resp.Data.Verdicts, 1)
	assert.Equal(t, harness.StageLoad, resp.Data.Verdicts[0].Stage)
}

func TestRun_SuiteFailFast(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`name: smoke
fail_fast: true
scenarios:
  - type: user_dict_load
    style_id: 99
  - global_info
  - voice_model_metas
`), 0o644))

	res := execute(t, fakeOptions(t), "", "run", "--format", "json", "--suite", path)
	assert.Equal(t, ExitFailure, res.code())

	resp := decodeRun(t, res.stdout)
	assert.Equal(t, "smoke", resp.Data.Suite)
	assert.Equal(t, harness.Summary{Failed: 1, Skipped: 2}, resp.Data.Summary)

	// The flag wins over the suite.
	res = execute(t, fakeOptions(t), "", "run", "--format", "json", "--suite", path, "--fail-fast=false")
	resp = decodeRun(t, res.stdout)
	assert.Equal(t, harness.Summary{Passed: 2, Failed: 1}, resp.Data.Summary)
}

func TestRun_SuiteWithUnknownTag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: broken\nscenarios: [nope]\n"), 0o644))

	res := execute(t, fakeOptions(t), "", "run", "--suite", path)
	assert.Equal(t, ExitCommandError, res.code())
	assert.ErrorIs(t, res.err, harness.ErrUnknownTag)
}

func TestRun_RecordThenHistory(t *testing.T) {
	db := filepath.Join(t.TempDir(), "results.db")
	opts := fakeOptions(t, "VV_RESULTS_DB="+db)

	res := execute(t, opts, "", "run", "--format", "json", "--record", "global_info", "voice_model_metas")
	require.NoError(t, res.err, "stderr: %s", res.stderr)
	runID := decodeRun(t, res.stdout).Data.RunID
	require.NotEmpty(t, runID)

	res = execute(t, opts, "", "history", "--format", "json")
	require.NoError(t, res.err)
	var runs struct {
		Data []struct {
			ID       string
			Platform string
			Passed   int
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &runs))
	require.Len(t, runs.Data, 1)
	assert.Equal(t, runID, runs.Data[0].ID)
	assert.Equal(t, "linux", runs.Data[0].Platform)
	assert.Equal(t, 2, runs.Data[0].Passed)

	res = execute(t, opts, "", "history", "--run", runID)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "global_info")
	assert.Contains(t, res.stdout, "voice_model_metas")

	res = execute(t, opts, "", "history", "--scenario", "global_info")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, runID)

	res = execute(t, opts, "", "history", "--run", "nope")
	assert.Equal(t, ExitCommandError, res.code())

	res = execute(t, opts, "", "history", "--format", "json", "--run", "nope")
	assert.Equal(t, ErrCodeNotFound, decodeError(t, res.stdout).Code)
}

func TestHistory_NoDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "absent.db")
	res := execute(t, &RootOptions{Environ: []string{"VV_RESULTS_DB=" + db}}, "", "history")
	assert.Equal(t, ExitCommandError, res.code())
	assert.ErrorContains(t, res.err, "no results database")

	_, err := os.Stat(db)
	assert.True(t, os.IsNotExist(err), "history must not create the database")
}
