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

// GlobalInfo exercises the handle-free entry points: the version string,
// error messages for every result code and the supported devices JSON,
// which is printed to stdout in canonical form.
type GlobalInfo struct{}

// newGlobalInfo takes no parameters.
func newGlobalInfo(params json.RawMessage) (harness.Case, error) {
	var c GlobalInfo
	if err := harness.DecodeParams(params, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Name returns the scenario tag.
func (*GlobalInfo) Name() string { return TagGlobalInfo }

// Exec needs no handles besides the process-wide onnxruntime. Version
// parsing happens inside lib.Version, which rejects non-semver strings.
func (c *GlobalInfo) Exec(_ context.Context, env *harness.ExecEnv) error {
	lib := env.Lib

	version, err := lib.Version()
	if err != nil {
		return err
	}
	env.Logger.Debug("core version", "version", version)

	// Every documented code must have a message; collect all gaps at once.
	var missing []string
	for _, code := range capi.ResultCodes() {
		msg, err := lib.ErrorMessage(code)
		if err != nil {
			return err
		}
		if strings.TrimSpace(msg) == "" {
			missing = append(missing, code.String())
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("no error message for %s", strings.Join(missing, ", "))
	}

	// The devices document is the only stdout output.
	ort, err := env.LoadOnnxruntime()
	if err != nil {
		return err
	}
	devices, err := lib.SupportedDevicesJSON(ort)
	if err != nil {
		return err
	}
	line, err := canonicalLine(devices)
	if err != nil {
		return err
	}
	_, err = env.Stdout.Write(line)
	return err
}

// AssertOutput requires a supported-devices object with cpu set. A
// global_info.stdout snapshot, when present, must match exactly.
func (c *GlobalInfo) AssertOutput(out capture.Output, snaps snapshot.Resolver) error {
	stderr, err := snaps.Resolve(TagGlobalInfo, "stderr")
	if err != nil {
		return err
	}
	stdout, ok, err := optional(snaps, TagGlobalInfo, "stdout")
	if err != nil {
		return err
	}
	if !ok {
		stdout = out.Stdout
	}
	if err := (harness.Expectation{Success: true, Stdout: stdout, Stderr: stderr}).Check(c.Name(), out); err != nil {
		return err
	}

	const want = `a supported-devices object with "cpu": true`
	var devices map[string]bool
	if err := json.Unmarshal([]byte(out.Stdout), &devices); err != nil || !devices["cpu"] {
		return harness.StdoutMismatch(c.Name(), want, out.Stdout)
	}
	return nil
}
