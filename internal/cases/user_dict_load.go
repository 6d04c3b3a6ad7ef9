package cases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/vvharness/internal/capi"
	"github.com/roach88/vvharness/internal/capture"
	"github.com/roach88/vvharness/internal/harness"
	"github.com/roach88/vvharness/internal/snapshot"
)

// Scenario tags.
const (
	TagUserDictLoad       = "user_dict_load"
	TagUserDictManipulate = "user_dict_manipulate"
	TagGlobalInfo         = "global_info"
	TagVoiceModelMetas    = "voice_model_metas"
)

const (
	unknownWord        = "this_word_should_not_exist_in_default_dictionary"
	unknownWordReading = "アイウエオ"
)

// UserDictLoad checks that attaching a user dictionary changes the reading
// of a word the system dictionary does not know: the kana of an AudioQuery
// for the word must differ before and after use_user_dict.
type UserDictLoad struct {
	StyleID capi.StyleID `json:"style_id"`

	// Acceleration is "auto", "cpu" or "gpu". Empty means cpu.
	Acceleration string `json:"acceleration_mode,omitempty"`

	mode capi.AccelerationMode
}

// newUserDictLoad accepts {"style_id": n, "acceleration_mode": "cpu"}; both
// members are optional.
func newUserDictLoad(params json.RawMessage) (harness.Case, error) {
	var c UserDictLoad
	if err := harness.DecodeParams(params, &c); err != nil {
		return nil, err
	}
	mode, err := accelerationParam(c.Acceleration)
	if err != nil {
		return nil, err
	}
	c.mode = mode
	return &c, nil
}

// Name returns the scenario tag.
func (*UserDictLoad) Name() string { return TagUserDictLoad }

// Exec builds a dictionary holding one proper noun, queries the kana of
// that word without and then with the dictionary attached, and fails when
// the two readings agree. It prints nothing; the library's own logging on
// stderr is what the snapshot compares.
func (c *UserDictLoad) Exec(_ context.Context, env *harness.ExecEnv) error {
	lib := env.Lib

	// The dictionary comes first so that it is released last.
	dict, err := newUserDict(env)
	if err != nil {
		return err
	}
	word := capi.NewUserDictWord(unknownWord, unknownWordReading)
	word.WordType = capi.WordTypeProperNoun
	word.Priority = 10
	if _, err := lib.AddWord(dict, word); err != nil {
		return err
	}

	// Everything an AudioQuery needs: model, runtime, Open JTalk and a
	// synthesizer with the model loaded.
	model, err := openVoiceModel(env)
	if err != nil {
		return err
	}
	ort, err := env.LoadOnnxruntime()
	if err != nil {
		return err
	}
	ojt, err := newOpenJtalk(env)
	if err != nil {
		return err
	}
	synth, err := newSynthesizer(env, ort, ojt, c.mode)
	if err != nil {
		return err
	}
	if err := lib.LoadVoiceModel(synth, model); err != nil {
		return err
	}

	// Query, attach, query again. Only use_user_dict sits between the two.
	without, err := c.kanaOf(lib, synth)
	if err != nil {
		return err
	}
	if err := lib.UseUserDict(ojt, dict); err != nil {
		return err
	}
	with, err := c.kanaOf(lib, synth)
	if err != nil {
		return err
	}

	env.Logger.Debug("kana compared", "without_dict", deref(without), "with_dict", deref(with))
	if equalKana(without, with) {
		return fmt.Errorf("kana unchanged by user dictionary: %q", deref(with))
	}
	return nil
}

// kanaOf returns the kana of an AudioQuery for the unknown word.
func (c *UserDictLoad) kanaOf(lib *capi.Library, synth capi.Synthesizer) (*string, error) {
	query, err := lib.CreateAudioQuery(synth, unknownWord, c.StyleID)
	if err != nil {
		return nil, err
	}
	return kana(query)
}

// AssertOutput requires a clean exit, an empty stdout and the platform's
// user_dict_load.stderr snapshot on stderr.
func (c *UserDictLoad) AssertOutput(out capture.Output, snaps snapshot.Resolver) error {
	stderr, err := snaps.Resolve(TagUserDictLoad, "stderr")
	if err != nil {
		return err
	}
	return harness.Expectation{Success: true, Stdout: "", Stderr: stderr}.Check(c.Name(), out)
}

// equalKana treats two missing kana members as equal.
func equalKana(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// deref renders an optional kana for logs and errors.
func deref(s *string) string {
	if s == nil {
		return "<missing>"
	}
	return *s
}
