package cases

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/vvharness/internal/capi"
	"github.com/roach88/vvharness/internal/capture"
	"github.com/roach88/vvharness/internal/harness"
	"github.com/roach88/vvharness/internal/snapshot"
)

// VoiceModelMetas loads the sample model into a synthesizer and prints two
// canonical JSON lines to stdout: the model file's metas and the
// synthesizer's metas. With a single model loaded they must be identical.
// The model is unloaded again before release.
type VoiceModelMetas struct {
	// Acceleration is "auto", "cpu" or "gpu". Empty means cpu.
	Acceleration string `json:"acceleration_mode,omitempty"`

	mode capi.AccelerationMode
}

// newVoiceModelMetas accepts {"acceleration_mode": "cpu"}.
func newVoiceModelMetas(params json.RawMessage) (harness.Case, error) {
	var c VoiceModelMetas
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
func (*VoiceModelMetas) Name() string { return TagVoiceModelMetas }

// Exec checks the loaded state of the model around load and unload and
// prints both metas documents in canonical form between the two.
func (c *VoiceModelMetas) Exec(_ context.Context, env *harness.ExecEnv) error {
	lib := env.Lib

	model, err := openVoiceModel(env)
	if err != nil {
		return err
	}
	id, err := lib.VoiceModelID(model)
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
	gpu, err := lib.IsGPUMode(synth)
	if err != nil {
		return err
	}
	// Auto may resolve either way.
	if c.mode != capi.AccelerationAuto && gpu != (c.mode == capi.AccelerationGPU) {
		return fmt.Errorf("synthesizer created with %s acceleration reports gpu mode %t", c.mode, gpu)
	}

	if err := lib.LoadVoiceModel(synth, model); err != nil {
		return err
	}
	loaded, err := lib.IsLoadedVoiceModel(synth, id)
	if err != nil {
		return err
	}
	if !loaded {
		return fmt.Errorf("model %s not reported loaded after load", id)
	}

	// With one model loaded the synthesizer's metas are the model's.
	modelMetas, err := lib.VoiceModelMetasJSON(model)
	if err != nil {
		return err
	}
	synthMetas, err := lib.SynthesizerMetasJSON(synth)
	if err != nil {
		return err
	}
	for _, doc := range []string{modelMetas, synthMetas} {
		line, err := canonicalLine(doc)
		if err != nil {
			return err
		}
		if _, err := env.Stdout.Write(line); err != nil {
			return err
		}
	}

	// The model must report unloaded while the synthesizer still lives.
	if err := lib.UnloadVoiceModel(synth, id); err != nil {
		return err
	}
	loaded, err = lib.IsLoadedVoiceModel(synth, id)
	if err != nil {
		return err
	}
	if loaded {
		return fmt.Errorf("model %s still reported loaded after unload", id)
	}
	return nil
}

// AssertOutput requires two identical non-empty JSON arrays on stdout. A
// voice_model_metas.stdout snapshot, when present, must match exactly.
func (c *VoiceModelMetas) AssertOutput(out capture.Output, snaps snapshot.Resolver) error {
	stderr, err := snaps.Resolve(TagVoiceModelMetas, "stderr")
	if err != nil {
		return err
	}
	stdout, ok, err := optional(snaps, TagVoiceModelMetas, "stdout")
	if err != nil {
		return err
	}
	if !ok {
		stdout = out.Stdout
	}
	if err := (harness.Expectation{Success: true, Stdout: stdout, Stderr: stderr}).Check(c.Name(), out); err != nil {
		return err
	}

	// Model metas, then synthesizer metas, one line each.
	lines := strings.Split(strings.TrimSuffix(out.Stdout, "\n"), "\n")
	if len(lines) != 2 {
		return harness.StdoutMismatch(c.Name(), "2 lines", out.Stdout)
	}
	if lines[0] != lines[1] {
		return harness.StdoutMismatch(c.Name(), "identical model and synthesizer metas", out.Stdout)
	}
	var speakers []json.RawMessage
	if err := json.Unmarshal([]byte(lines[0]), &speakers); err != nil || len(speakers) == 0 {
		return harness.StdoutMismatch(c.Name(), "a non-empty JSON array of speakers", out.Stdout)
	}
	return nil
}
