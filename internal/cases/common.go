package cases

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/vvharness/internal/capi"
	"github.com/roach88/vvharness/internal/harness"
)

// The built-in scenarios register themselves with the default registry, so
// importing this package for side effects is enough to make them runnable.
func init() {
	harness.Register(TagUserDictLoad, newUserDictLoad)
	harness.Register(TagUserDictManipulate, newUserDictManipulate)
	harness.Register(TagGlobalInfo, newGlobalInfo)
	harness.Register(TagVoiceModelMetas, newVoiceModelMetas)
}

// Fixture errors. A scenario returns them before touching the library, so
// they surface at the execution stage with nothing acquired.
var (
	errNoVoiceModel = errors.New("sample voice model path is not configured")
	errNoDicDir     = errors.New("Open JTalk dictionary directory is not configured")
)

// The helpers below acquire one resource each and register its release
// with the scenario's scope right away, so the scope unwinds them in
// reverse acquisition order whatever step fails later.

// newUserDict creates an empty user dictionary.
func newUserDict(env *harness.ExecEnv) (capi.UserDict, error) {
	dict, err := env.Lib.NewUserDict()
	if err != nil {
		return 0, err
	}
	env.Scope.Defer("user_dict", func() error { return env.Lib.DeleteUserDict(dict) })
	return dict, nil
}

// openVoiceModel opens the sample voice model fixture.
func openVoiceModel(env *harness.ExecEnv) (capi.VoiceModelFile, error) {
	if env.Fixtures.SampleVoiceModel == "" {
		return 0, errNoVoiceModel
	}
	model, err := env.Lib.OpenVoiceModelFile(env.Fixtures.SampleVoiceModel)
	if err != nil {
		return 0, err
	}
	env.Scope.Defer("voice_model_file", func() error { return env.Lib.CloseVoiceModelFile(model) })
	return model, nil
}

// newOpenJtalk loads the Open JTalk system dictionary fixture.
func newOpenJtalk(env *harness.ExecEnv) (capi.OpenJtalkRc, error) {
	if env.Fixtures.OpenJtalkDicDir == "" {
		return 0, errNoDicDir
	}
	ojt, err := env.Lib.NewOpenJtalkRc(env.Fixtures.OpenJtalkDicDir)
	if err != nil {
		return 0, err
	}
	env.Scope.Defer("open_jtalk_rc", func() error { return env.Lib.DeleteOpenJtalkRc(ojt) })
	return ojt, nil
}

// accelerationParam parses the acceleration_mode parameter. Scenarios run
// on the CPU unless a descriptor asks otherwise.
func accelerationParam(s string) (capi.AccelerationMode, error) {
	if s == "" {
		return capi.AccelerationCPU, nil
	}
	return capi.ParseAccelerationMode(s)
}

// newSynthesizer creates a synthesizer with the library defaults except for
// the acceleration mode.
func newSynthesizer(env *harness.ExecEnv, ort capi.Onnxruntime, ojt capi.OpenJtalkRc, mode capi.AccelerationMode) (capi.Synthesizer, error) {
	opts, err := env.Lib.DefaultInitializeOptions()
	if err != nil {
		return 0, err
	}
	opts.AccelerationMode = mode

	synth, err := env.Lib.NewSynthesizer(ort, ojt, opts)
	if err != nil {
		return 0, err
	}
	env.Scope.Defer("synthesizer", func() error { return env.Lib.DeleteSynthesizer(synth) })
	return synth, nil
}

// kana extracts the "kana" member of an AudioQuery. A missing member is nil.
func kana(audioQuery string) (*string, error) {
	var q struct {
		Kana *string `json:"kana"`
	}
	if err := json.Unmarshal([]byte(audioQuery), &q); err != nil {
		return nil, fmt.Errorf("decode AudioQuery: %w", err)
	}
	return q.Kana, nil
}

// canonicalLine renders a JSON document canonically with a trailing newline.
func canonicalLine(doc string) ([]byte, error) {
	out, err := harness.CanonicalJSON([]byte(doc))
	if err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	return append(out, '\n'), nil
}
