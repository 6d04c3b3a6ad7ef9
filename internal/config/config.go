// Package config loads harness settings from VV_* environment variables,
// optionally seeded from a .env file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	env "github.com/Netflix/go-env"
	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"

	"github.com/roach88/vvharness/internal/harness"
	"github.com/roach88/vvharness/internal/logging"
	"github.com/roach88/vvharness/internal/normalize"
)

// DefaultEnvFile is read when present and no other file is named.
const DefaultEnvFile = ".env"

// ErrInvalid matches every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config holds every tunable of a harness run.
type Config struct {
	// CdylibPath is the library under test.
	CdylibPath string `env:"VV_CDYLIB_PATH"`

	// Fixtures the scenarios load.
	SampleVoiceModel string `env:"VV_SAMPLE_VOICE_MODEL"`
	OpenJtalkDicDir  string `env:"VV_OPEN_JTALK_DIC_DIR"`

	// OnnxruntimeFilename overrides the runtime the core loads. Empty keeps
	// the core's default.
	OnnxruntimeFilename string `env:"VV_ONNXRUNTIME_FILENAME"`

	// OnnxruntimeVersion, when set, is masked as a literal in output.
	OnnxruntimeVersion string `env:"VV_ONNXRUNTIME_VERSION"`

	// Snapshots and MaskRules name files that replace the embedded ones.
	Snapshots string `env:"VV_SNAPSHOTS"`
	MaskRules string `env:"VV_MASK_RULES"`

	// ResultsDB defaults to a file under the XDG data directory.
	ResultsDB string `env:"VV_RESULTS_DB"`

	// Platform defaults to runtime.GOOS.
	Platform string `env:"VV_PLATFORM"`

	Parallel   int    `env:"VV_PARALLEL,default=1"`
	TimeoutSec int    `env:"VV_TIMEOUT_SEC,default=120"`
	LogLevel   string `env:"VV_LOG_LEVEL,default=info"`

	// CoreVersionConstraint is a semver constraint the library's version
	// must satisfy, checked in the load stage.
	CoreVersionConstraint string `env:"VV_CORE_VERSION_CONSTRAINT"`
}

// Load reads envFile into a copy of environ (real variables win), then
// unmarshals the VV_* variables. A missing envFile is not an error when it
// is DefaultEnvFile.
func Load(fs afero.Fs, envFile string, environ []string) (*Config, error) {
	es, err := env.EnvironToEnvSet(environ)
	if err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if envFile != "" {
		data, err := afero.ReadFile(fs, envFile)
		switch {
		case errors.Is(err, os.ErrNotExist) && envFile == DefaultEnvFile:
			// Optional.
		case err != nil:
			return nil, fmt.Errorf("failed to read env file: %w", err)
		default:
			vars, err := godotenv.Parse(bytes.NewReader(data))
			if err != nil {
				return nil, fmt.Errorf("failed to parse env file %s: %w", envFile, err)
			}
			// The file only fills gaps.
			for k, v := range vars {
				if _, ok := es[k]; !ok {
					es[k] = v
				}
			}
		}
	}

	cfg := &Config{}
	if err := env.Unmarshal(es, cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults fills values that depend on the host rather than the
// environment.
func (c *Config) applyDefaults() {
	if c.Platform == "" {
		c.Platform = runtime.GOOS
	}
	if c.ResultsDB == "" {
		c.ResultsDB = DefaultResultsDB()
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
}

// DefaultResultsDB is the results database under the XDG data directory.
func DefaultResultsDB() string {
	return filepath.Join(xdg.DataHome, "vvharness", "results.db")
}

// Timeout is TimeoutSec as a duration. Zero means no limit.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// Fixtures returns the assets handed to scenarios.
func (c *Config) Fixtures() harness.Fixtures {
	return harness.Fixtures{
		SampleVoiceModel:    c.SampleVoiceModel,
		OpenJtalkDicDir:     c.OpenJtalkDicDir,
		OnnxruntimeFilename: c.OnnxruntimeFilename,
	}
}

// Validate checks settings that do not depend on which scenarios run.
func (c *Config) Validate() error {
	var errs []error
	if c.Parallel < 0 {
		errs = append(errs, fmt.Errorf("VV_PARALLEL must be >= 0, got %d", c.Parallel))
	}
	if c.TimeoutSec < 0 {
		errs = append(errs, fmt.Errorf("VV_TIMEOUT_SEC must be >= 0, got %d", c.TimeoutSec))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("VV_LOG_LEVEL: %w", err))
	}
	if c.CoreVersionConstraint != "" {
		if _, err := semver.NewConstraint(c.CoreVersionConstraint); err != nil {
			errs = append(errs, fmt.Errorf("VV_CORE_VERSION_CONSTRAINT: %w", err))
		}
	}
	return joinInvalid(errs)
}

// RequirePaths checks that the library and fixtures exist on fs. It is
// separate from Validate because commands like list need none of them.
func (c *Config) RequirePaths(fs afero.Fs) error {
	var errs []error
	// Every problem is reported, not just the first.
	for _, p := range []struct {
		name, value string
		dir         bool
	}{
		{"VV_CDYLIB_PATH", c.CdylibPath, false},
		{"VV_SAMPLE_VOICE_MODEL", c.SampleVoiceModel, false},
		{"VV_OPEN_JTALK_DIC_DIR", c.OpenJtalkDicDir, true},
	} {
		if p.value == "" {
			errs = append(errs, fmt.Errorf("%s is required", p.name))
			continue
		}
		info, err := fs.Stat(p.value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.name, err))
			continue
		}
		if info.IsDir() != p.dir {
			kind := "a file"
			if p.dir {
				kind = "a directory"
			}
			errs = append(errs, fmt.Errorf("%s=%s: must be %s", p.name, p.value, kind))
		}
	}
	return joinInvalid(errs)
}

// joinInvalid wraps every problem under ErrInvalid, or returns nil.
func joinInvalid(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// RuleSet compiles the mask rules: VV_MASK_RULES when set, else the
// embedded defaults, plus a literal mask for VV_ONNXRUNTIME_VERSION.
func (c *Config) RuleSet(fs afero.Fs) (*normalize.RuleSet, error) {
	var (
		rules *normalize.RuleSet
		err   error
	)
	if c.MaskRules != "" {
		rules, err = normalize.LoadRuleSet(fs, c.MaskRules)
	} else {
		rules, err = normalize.Default()
	}
	if err != nil {
		return nil, err
	}
	if c.OnnxruntimeVersion == "" {
		return rules, nil
	}
	return rules.With(normalize.Literal("onnxruntime_version_literal", c.OnnxruntimeVersion, "{onnxruntime_version}"))
}
