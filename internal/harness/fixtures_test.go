package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/vvharness/internal/capi"
	"github.com/roach88/vvharness/internal/capture"
	"github.com/roach88/vvharness/internal/snapshot"
)

// Scenarios used by the harness tests. The child process (TestMain) and the
// parent resolve them from the same registry.
var testCases = newTestRegistry()

const testSnapshots = `
[echo]
stdout = "hello"
`

func newTestRegistry() *Registry {
	r := NewRegistry()
	r.Register("echo", func(params json.RawMessage) (Case, error) {
		var c echoCase
		if err := DecodeParams(params, &c); err != nil {
			return nil, err
		}
		return c, nil
	})
	r.Register("dict_word", static(dictWordCase{}))
	r.Register("leaky", static(leakyCase{}))
	r.Register("failing_call", static(failingCallCase{}))
	r.Register("expected_failure", static(expectedFailureCase{}))
	r.Register("panics", static(panicCase{}))
	r.Register("hang", static(hangCase{}))
	return r
}

func static(c Case) Constructor {
	return func(json.RawMessage) (Case, error) { return c, nil }
}

func expectSuccess(name string, out capture.Output) error {
	return Expectation{Success: true}.Check(name, out)
}

type echoCase struct {
	Text string `json:"text"`
}

func (echoCase) Name() string { return "echo" }

func (c echoCase) Exec(_ context.Context, env *ExecEnv) error {
	_, err := fmt.Fprint(env.Stdout, c.Text)
	return err
}

func (c echoCase) AssertOutput(out capture.Output, snaps snapshot.Resolver) error {
	want, err := snaps.Resolve("echo", "stdout")
	if err != nil {
		return err
	}
	return Expectation{Success: true, Stdout: want}.Check(c.Name(), out)
}

type dictWordCase struct{}

func (dictWordCase) Name() string { return "dict_word" }

func (dictWordCase) Exec(_ context.Context, env *ExecEnv) error {
	dict, err := env.Lib.NewUserDict()
	if err != nil {
		return err
	}
	env.Scope.Defer("user_dict", func() error { return env.Lib.DeleteUserDict(dict) })

	_, err = env.Lib.AddWord(dict, capi.NewUserDictWord("テスト", "テスト"))
	return err
}

func (c dictWordCase) AssertOutput(out capture.Output, _ snapshot.Resolver) error {
	return expectSuccess(c.Name(), out)
}

type leakyCase struct{}

func (leakyCase) Name() string { return "leaky" }

func (leakyCase) Exec(_ context.Context, env *ExecEnv) error {
	_, err := env.Lib.NewUserDict()
	return err
}

func (c leakyCase) AssertOutput(out capture.Output, _ snapshot.Resolver) error {
	return expectSuccess(c.Name(), out)
}

func missingDicDir() string {
	return filepath.Join(os.TempDir(), "vvharness-no-such-dic")
}

type failingCallCase struct{}

func (failingCallCase) Name() string { return "failing_call" }

func (failingCallCase) Exec(_ context.Context, env *ExecEnv) error {
	ojt, err := env.Lib.NewOpenJtalkRc(missingDicDir())
	if err != nil {
		return err
	}
	return env.Lib.DeleteOpenJtalkRc(ojt)
}

func (c failingCallCase) AssertOutput(out capture.Output, _ snapshot.Resolver) error {
	return expectSuccess(c.Name(), out)
}

type expectedFailureCase struct{}

func (expectedFailureCase) Name() string { return "expected_failure" }

func (expectedFailureCase) Exec(_ context.Context, env *ExecEnv) error {
	_, err := env.Lib.NewOpenJtalkRc(missingDicDir())
	return ExpectResult(err, capi.ResultNotLoadedOpenjtalkDict)
}

func (c expectedFailureCase) AssertOutput(out capture.Output, _ snapshot.Resolver) error {
	return expectSuccess(c.Name(), out)
}

type panicCase struct{}

func (panicCase) Name() string { return "panics" }

func (panicCase) Exec(_ context.Context, env *ExecEnv) error {
	dict, err := env.Lib.NewUserDict()
	if err != nil {
		return err
	}
	env.Scope.Defer("user_dict", func() error { return env.Lib.DeleteUserDict(dict) })
	panic(errors.New("boom"))
}

func (c panicCase) AssertOutput(out capture.Output, _ snapshot.Resolver) error {
	return expectSuccess(c.Name(), out)
}

type hangCase struct{}

func (hangCase) Name() string { return "hang" }

func (hangCase) Exec(ctx context.Context, _ *ExecEnv) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(30 * time.Second):
		return nil
	}
}

func (c hangCase) AssertOutput(out capture.Output, _ snapshot.Resolver) error {
	return expectSuccess(c.Name(), out)
}

type probeCase struct {
	fn func(env *ExecEnv)
}

func (probeCase) Name() string { return "probe" }

func (c probeCase) Exec(_ context.Context, env *ExecEnv) error {
	c.fn(env)
	return nil
}

func (c probeCase) AssertOutput(out capture.Output, _ snapshot.Resolver) error {
	return expectSuccess(c.Name(), out)
}
