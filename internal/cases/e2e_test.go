package cases

import (
	"context"
	"os"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vvharness/internal/capi"
	"github.com/roach88/vvharness/internal/harness"
	"github.com/roach88/vvharness/internal/normalize"
	"github.com/roach88/vvharness/internal/testutil"
)

const (
	fakeLib = "<fake>"

	// envVideoCards makes the child's fake core print a DirectML adapter
	// listing, as the Windows build does.
	envVideoCards = "CASES_TEST_VIDEO_CARDS"
)

func TestMain(m *testing.M) {
	if os.Getenv(harness.EnvCase) != "" {
		os.Exit(childMain())
	}
	os.Exit(m.Run())
}

func childMain() int {
	fake := testutil.NewFakeCore()
	fake.Stderr = os.Stderr
	if cards := os.Getenv(envVideoCards); cards != "" {
		fake.VideoCards = strings.Split(cards, ";")
	}

	e := &harness.Executor{
		Open: func(path string) (*capi.Library, error) {
			if path != fakeLib {
				return capi.Open(path)
			}
			return fake.Library(), nil
		},
	}
	return e.Main(context.Background())
}

func newRunner(t *testing.T, lib string, fx harness.Fixtures, platform string) *harness.Runner {
	t.Helper()

	exe, err := os.Executable()
	require.NoError(t, err)
	rules, err := normalize.Default()
	require.NoError(t, err)
	snaps, err := Snapshots()
	require.NoError(t, err)

	return &harness.Runner{
		Self:      []string{exe},
		Lib:       lib,
		Fixtures:  fx,
		Rules:     rules,
		Snapshots: snaps,
		Platform:  platform,
		Timeout:   2 * time.Minute,
	}
}

func TestEndToEnd_FakeCore(t *testing.T) {
	r := newRunner(t, fakeLib, fixturesFrom(testutil.FakeFixtures(t)), "linux")
	r.Parallel = 2

	descs := []harness.Descriptor{
		{Type: TagUserDictLoad},
		{Type: TagUserDictManipulate},
		{Type: TagGlobalInfo},
		{Type: TagVoiceModelMetas},
	}
	verdicts := r.RunAll(t.Context(), descs)

	require.Len(t, verdicts, len(descs))
	for i, v := range verdicts {
		assert.Equal(t, descs[i].Type, v.Scenario)
		assert.True(t, v.Pass, "%s: %v", v.Scenario, v.Err)
		assert.Equal(t, testutil.FakeCoreVersion, v.CoreVersion)
	}
	assert.True(t, harness.Summarize(verdicts).OK())
}

func TestEndToEnd_WindowsVideoCards(t *testing.T) {
	r := newRunner(t, fakeLib, fixturesFrom(testutil.FakeFixtures(t)), "windows")
	r.Env = []string{envVideoCards + "=NVIDIA GeForce RTX 3060;Microsoft Basic Render Driver"}

	v := r.Run(t.Context(), harness.Descriptor{Type: TagUserDictLoad})

	require.True(t, v.Pass, "verdict error: %v", v.Err)
	assert.Equal(t, "{windows-video-cards}\n", v.Output.Stderr)
	harness.AssertGolden(t, "user_dict_load.windows", v)
}

func TestEndToEnd_VideoCardsUnmaskedOffWindows(t *testing.T) {
	r := newRunner(t, fakeLib, fixturesFrom(testutil.FakeFixtures(t)), "linux")
	r.Env = []string{envVideoCards + "=NVIDIA GeForce RTX 3060"}

	v := r.Run(t.Context(), harness.Descriptor{Type: TagUserDictLoad})

	require.False(t, v.Pass)
	assert.Equal(t, harness.StageAssertion, v.Stage)
	require.Len(t, v.Diffs, 1)
	assert.Equal(t, harness.StreamStderr, v.Diffs[0].Stream)
	assert.Contains(t, v.Diffs[0].Actual, "{timestamp}  INFO voicevox_core::synthesizer::blocking")
}

func TestEndToEnd_IsolationBothOrders(t *testing.T) {
	r := newRunner(t, fakeLib, fixturesFrom(testutil.FakeFixtures(t)), "linux")
	a := harness.Descriptor{Type: TagUserDictManipulate}
	b := harness.Descriptor{Type: TagUserDictLoad}

	alone := r.Run(t.Context(), b)
	ab := r.RunAll(t.Context(), []harness.Descriptor{a, b})
	ba := r.RunAll(t.Context(), []harness.Descriptor{b, a})

	assert.Equal(t, alone.Snapshot(), ab[1].Snapshot())
	assert.Equal(t, alone.Snapshot(), ba[0].Snapshot())
	assert.Equal(t, ab[0].Snapshot(), ba[1].Snapshot())
}

// TestEndToEnd_RealCore runs the scenarios against a real build when
// VV_CDYLIB_PATH and the fixture variables are set.
func TestEndToEnd_RealCore(t *testing.T) {
	fx := testutil.RequireFixtures(t)

	r := newRunner(t, fx.Cdylib, fixturesFrom(fx), runtime.GOOS)
	r.Fixtures.OnnxruntimeFilename = os.Getenv("VV_ONNXRUNTIME_FILENAME")

	for _, tag := range []string{TagUserDictLoad, TagUserDictManipulate, TagGlobalInfo, TagVoiceModelMetas} {
		t.Run(tag, func(t *testing.T) {
			v := r.Run(t.Context(), harness.Descriptor{Type: tag})
			assert.True(t, v.Pass, "%s failed at %s: %v", tag, v.Stage, v.Err)
			acquires, releases := 0, 0
			for _, ev := range v.Events {
				if ev.Op == "acquire" {
					acquires++
				} else {
					releases++
				}
			}
			assert.Equal(t, acquires, releases)
		})
	}
}
