package cases

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/roach88/vvharness/internal/capi"
	"github.com/roach88/vvharness/internal/capture"
	"github.com/roach88/vvharness/internal/harness"
	"github.com/roach88/vvharness/internal/snapshot"
)

// UserDictManipulate drives every user dictionary entry point: add, update,
// remove, to_json, save, load and import. Operations that must fail are
// checked for their exact result code.
type UserDictManipulate struct{}

// newUserDictManipulate takes no parameters.
func newUserDictManipulate(params json.RawMessage) (harness.Case, error) {
	var c UserDictManipulate
	if err := harness.DecodeParams(params, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Name returns the scenario tag.
func (*UserDictManipulate) Name() string { return TagUserDictManipulate }

// Exec walks the dictionary through its whole life cycle and checks the
// word set after every mutation through to_json. Expected failures are
// matched on their exact result code; any other code fails the scenario.
func (c *UserDictManipulate) Exec(_ context.Context, env *harness.ExecEnv) error {
	lib := env.Lib

	dict, err := newUserDict(env)
	if err != nil {
		return err
	}

	// Add, then update in place; the UUID must stay the same.
	first, err := lib.AddWord(dict, capi.NewUserDictWord("手札", "テフダ"))
	if err != nil {
		return err
	}
	if err := wantWords(lib, dict, first); err != nil {
		return fmt.Errorf("after add: %w", err)
	}

	updated := capi.NewUserDictWord("手札", "テフダ")
	updated.Priority = 7
	if err := lib.UpdateWord(dict, first, updated); err != nil {
		return err
	}

	// A pronunciation outside katakana is rejected by the library, and a
	// UUID it never issued cannot be removed.
	invalid := capi.NewUserDictWord("abc", "not katakana")
	_, err = lib.AddWord(dict, invalid)
	if err := harness.ExpectResult(err, capi.ResultInvalidUserDictWordError); err != nil {
		return fmt.Errorf("add invalid word: %w", err)
	}

	if err := harness.ExpectResult(lib.RemoveWord(dict, uuid.New()), capi.ResultUserDictWordNotFoundError); err != nil {
		return fmt.Errorf("remove unknown word: %w", err)
	}

	// Save and load into a fresh dictionary.
	dir, err := os.MkdirTemp("", "vvharness-user-dict-")
	if err != nil {
		return err
	}
	env.Scope.Defer("temp dir", func() error { return os.RemoveAll(dir) })

	path := filepath.Join(dir, "user_dict.json")
	if err := lib.SaveUserDict(dict, path); err != nil {
		return err
	}
	loaded, err := newUserDict(env)
	if err != nil {
		return err
	}
	if err := lib.LoadUserDict(loaded, path); err != nil {
		return err
	}
	if err := sameJSON(lib, dict, loaded); err != nil {
		return fmt.Errorf("save/load round trip: %w", err)
	}
	if err := harness.ExpectResult(lib.LoadUserDict(loaded, filepath.Join(dir, "missing.json")), capi.ResultLoadUserDictError); err != nil {
		return fmt.Errorf("load missing file: %w", err)
	}

	// Import a second dictionary.
	other, err := newUserDict(env)
	if err != nil {
		return err
	}
	second, err := lib.AddWord(other, capi.NewUserDictWord("山札", "ヤマフダ"))
	if err != nil {
		return err
	}
	if err := lib.ImportUserDict(dict, other); err != nil {
		return err
	}
	if err := wantWords(lib, dict, first, second); err != nil {
		return fmt.Errorf("after import: %w", err)
	}

	// Removing the first word leaves only the imported one.
	if err := lib.RemoveWord(dict, first); err != nil {
		return err
	}
	if err := wantWords(lib, dict, second); err != nil {
		return fmt.Errorf("after remove: %w", err)
	}
	return nil
}

// AssertOutput compares both streams with the user_dict_manipulate
// snapshots and requires a clean exit.
func (c *UserDictManipulate) AssertOutput(out capture.Output, snaps snapshot.Resolver) error {
	stdout, err := snaps.Resolve(TagUserDictManipulate, "stdout")
	if err != nil {
		return err
	}
	stderr, err := snaps.Resolve(TagUserDictManipulate, "stderr")
	if err != nil {
		return err
	}
	return harness.Expectation{Success: true, Stdout: stdout, Stderr: stderr}.Check(c.Name(), out)
}

// wantWords checks the dictionary holds exactly the given word UUIDs.
func wantWords(lib *capi.Library, dict capi.UserDict, ids ...uuid.UUID) error {
	doc, err := lib.UserDictJSON(dict)
	if err != nil {
		return err
	}
	var words map[string]json.RawMessage
	if err := json.Unmarshal([]byte(doc), &words); err != nil {
		return fmt.Errorf("decode user dict JSON: %w", err)
	}
	if len(words) != len(ids) {
		return fmt.Errorf("want %d word(s), dictionary has %d", len(ids), len(words))
	}
	for _, id := range ids {
		if _, ok := words[id.String()]; !ok {
			return fmt.Errorf("word %s missing from dictionary", id)
		}
	}
	return nil
}

// sameJSON compares the canonical to_json documents of two dictionaries.
// Key order in the library's output is not part of the contract.
func sameJSON(lib *capi.Library, a, b capi.UserDict) error {
	docA, err := lib.UserDictJSON(a)
	if err != nil {
		return err
	}
	docB, err := lib.UserDictJSON(b)
	if err != nil {
		return err
	}
	canonA, err := harness.CanonicalJSON([]byte(docA))
	if err != nil {
		return err
	}
	canonB, err := harness.CanonicalJSON([]byte(docB))
	if err != nil {
		return err
	}
	if !bytes.Equal(canonA, canonB) {
		return fmt.Errorf("dictionaries differ:\n%s\n%s", canonA, canonB)
	}
	return nil
}
