package config

import (
	"runtime"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vvharness/internal/normalize"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(afero.NewMemMapFs(), "", nil)
	require.NoError(t, err)

	assert.Equal(t, runtime.GOOS, cfg.Platform)
	assert.Equal(t, 1, cfg.Parallel)
	assert.Equal(t, 120*time.Second, cfg.Timeout())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DefaultResultsDB(), cfg.ResultsDB)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FromEnviron(t *testing.T) {
	cfg, err := Load(afero.NewMemMapFs(), "", []string{
		"VV_CDYLIB_PATH=/lib/libvoicevox_core.so",
		"VV_SAMPLE_VOICE_MODEL=/models/sample.vvm",
		"VV_OPEN_JTALK_DIC_DIR=/dict",
		"VV_ONNXRUNTIME_FILENAME=libvoicevox_onnxruntime.so.1.17.3",
		"VV_PLATFORM=windows",
		"VV_PARALLEL=4",
		"VV_TIMEOUT_SEC=0",
		"VV_LOG_LEVEL= DEBUG ",
		"VV_CORE_VERSION_CONSTRAINT=>= 0.16.0",
		"UNRELATED=x",
	})
	require.NoError(t, err)

	assert.Equal(t, "/lib/libvoicevox_core.so", cfg.CdylibPath)
	assert.Equal(t, "windows", cfg.Platform)
	assert.Equal(t, 4, cfg.Parallel)
	assert.Zero(t, cfg.Timeout())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ">= 0.16.0", cfg.CoreVersionConstraint)

	fx := cfg.Fixtures()
	assert.Equal(t, "/models/sample.vvm", fx.SampleVoiceModel)
	assert.Equal(t, "/dict", fx.OpenJtalkDicDir)
	assert.Equal(t, "libvoicevox_onnxruntime.so.1.17.3", fx.OnnxruntimeFilename)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvFileDoesNotOverride(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "ci.env", []byte(
		"VV_PLATFORM=darwin\n# comment\nVV_PARALLEL=8\nVV_RESULTS_DB=/tmp/r.db\n",
	), 0o644))

	cfg, err := Load(fs, "ci.env", []string{"VV_PLATFORM=linux"})
	require.NoError(t, err)

	assert.Equal(t, "linux", cfg.Platform)
	assert.Equal(t, 8, cfg.Parallel)
	assert.Equal(t, "/tmp/r.db", cfg.ResultsDB)
}

func TestLoad_MissingEnvFile(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := Load(fs, DefaultEnvFile, nil)
	assert.NoError(t, err, "a missing default .env is ignored")

	_, err = Load(fs, "explicit.env", nil)
	assert.ErrorContains(t, err, "failed to read env file")
}

func TestLoad_BadInteger(t *testing.T) {
	_, err := Load(afero.NewMemMapFs(), "", []string{"VV_PARALLEL=many"})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"negative parallel", func(c *Config) { c.Parallel = -1 }, "VV_PARALLEL must be >= 0"},
		{"negative timeout", func(c *Config) { c.TimeoutSec = -5 }, "VV_TIMEOUT_SEC must be >= 0"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "VV_LOG_LEVEL"},
		{"bad constraint", func(c *Config) { c.CoreVersionConstraint = "not a version" }, "VV_CORE_VERSION_CONSTRAINT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(afero.NewMemMapFs(), "", nil)
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			assert.ErrorIs(t, err, ErrInvalid)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestRequirePaths(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/lib/core.so", nil, 0o644))
	require.NoError(t, afero.WriteFile(fs, "/models/sample.vvm", nil, 0o644))
	require.NoError(t, fs.MkdirAll("/dict", 0o755))

	cfg := &Config{
		CdylibPath:       "/lib/core.so",
		SampleVoiceModel: "/models/sample.vvm",
		OpenJtalkDicDir:  "/dict",
	}
	assert.NoError(t, cfg.RequirePaths(fs))

	cfg.OpenJtalkDicDir = "/models/sample.vvm"
	cfg.CdylibPath = ""
	err := cfg.RequirePaths(fs)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.ErrorContains(t, err, "VV_CDYLIB_PATH is required")
	assert.ErrorContains(t, err, "must be a directory")
}

func TestRuleSet(t *testing.T) {
	fs := afero.NewMemMapFs()

	cfg := &Config{OnnxruntimeVersion: "1.17.3"}
	rules, err := cfg.RuleSet(fs)
	require.NoError(t, err)
	assert.Equal(t, "ort {onnxruntime_version}", rules.Apply("ort 1.17.3", normalize.StreamStderr, "linux"))

	require.NoError(t, afero.WriteFile(fs, "rules.yaml", []byte(
		"rules:\n  - name: pid\n    pattern: 'pid=[0-9]+'\n    replacement: 'pid={pid}'\n",
	), 0o644))
	cfg = &Config{MaskRules: "rules.yaml"}
	rules, err = cfg.RuleSet(fs)
	require.NoError(t, err)
	assert.Equal(t, []string{"pid"}, rules.Names())

	cfg.MaskRules = "missing.yaml"
	_, err = cfg.RuleSet(fs)
	assert.Error(t, err)
}
