package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Environment variables naming a real core build and its fixtures.
const (
	EnvCdylibPath       = "VV_CDYLIB_PATH"
	EnvSampleVoiceModel = "VV_SAMPLE_VOICE_MODEL"
	EnvOpenJtalkDicDir  = "VV_OPEN_JTALK_DIC_DIR"
)

// Fixtures points at the assets a real core needs.
type Fixtures struct {
	Cdylib           string // shared library path
	SampleVoiceModel string // .vvm file
	OpenJtalkDicDir  string // system dictionary directory
}

// RequireCdylib skips the test unless a real core build is available.
func RequireCdylib(t testing.TB) string {
	t.Helper()
	path := os.Getenv(EnvCdylibPath)
	if path == "" {
		t.Skipf("%s not set; skipping test against the real core", EnvCdylibPath)
	}
	// A stale path skips rather than fails.
	if _, err := os.Stat(path); err != nil {
		t.Skipf("%s=%s: %v", EnvCdylibPath, path, err)
	}
	return path
}

// RequireFixtures skips unless the core and every fixture are present.
func RequireFixtures(t testing.TB) Fixtures {
	t.Helper()
	fx := Fixtures{Cdylib: RequireCdylib(t)}
	for _, v := range []struct {
		env string
		dst *string
	}{
		{EnvSampleVoiceModel, &fx.SampleVoiceModel},
		{EnvOpenJtalkDicDir, &fx.OpenJtalkDicDir},
	} {
		*v.dst = os.Getenv(v.env)
		if *v.dst == "" {
			t.Skipf("%s not set", v.env)
		}
		if _, err := os.Stat(*v.dst); err != nil {
			t.Skipf("%s=%s: %v", v.env, *v.dst, err)
		}
	}
	return fx
}

// FakeFixtures creates on-disk stand-ins the fake core accepts: an empty
// dictionary directory and an empty .vvm file.
func FakeFixtures(t testing.TB) Fixtures {
	t.Helper()
	dir := t.TempDir()
	dicDir := filepath.Join(dir, "open_jtalk_dic_utf_8-1.11")
	if err := os.Mkdir(dicDir, 0o755); err != nil {
		t.Fatalf("create dictionary dir: %v", err)
	}
	model := filepath.Join(dir, "sample.vvm")
	if err := os.WriteFile(model, nil, 0o644); err != nil {
		t.Fatalf("create model file: %v", err)
	}
	return Fixtures{
		Cdylib:           "<fake>",
		SampleVoiceModel: model,
		OpenJtalkDicDir:  dicDir,
	}
}
