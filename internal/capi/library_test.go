package capi_test

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vvharness/internal/capi"
	"github.com/roach88/vvharness/internal/lifecycle"
	"github.com/roach88/vvharness/internal/testutil"
)

type mapResolver map[string]uintptr

func (r mapResolver) Lookup(name string) (uintptr, error) {
	addr, ok := r[name]
	if !ok {
		return 0, errors.New("undefined symbol")
	}
	return addr, nil
}

func TestBind_ReportsEveryMissingSymbol(t *testing.T) {
	resolver := mapResolver{}
	for i, name := range capi.SymbolNames() {
		resolver[name] = uintptr(0x1000 + i)
	}
	delete(resolver, "voicevox_user_dict_load")
	delete(resolver, "voicevox_json_free")

	funcs, err := capi.Bind(resolver)
	require.Error(t, err)
	assert.ErrorIs(t, err, capi.ErrSymbolMissing)

	var missing *capi.SymbolMissingError
	require.ErrorAs(t, err, &missing)
	assert.ElementsMatch(t, []string{"voicevox_user_dict_load", "voicevox_json_free"}, missing.Names)

	// Nothing is registered when any symbol is missing.
	assert.Nil(t, funcs.GetVersion)
	assert.Nil(t, funcs.UserDictNew)
}

func TestSymbolNames_Unique(t *testing.T) {
	names := capi.SymbolNames()
	seen := map[string]bool{}
	for _, n := range names {
		assert.True(t, strings.HasPrefix(n, "voicevox_"), n)
		assert.False(t, seen[n], "duplicate %s", n)
		seen[n] = true
	}
	assert.NotContains(t, names, "voicevox_user_dict_word_make")
}

func TestOpen_NotFound(t *testing.T) {
	_, err := capi.Open(filepath.Join(t.TempDir(), "libvoicevox_core.so"))
	assert.ErrorIs(t, err, capi.ErrLibraryNotFound)
}

func TestFromFuncs_NilEntries(t *testing.T) {
	funcs := testutil.NewFakeCore().Funcs()
	funcs.UserDictSave = nil

	_, err := capi.FromFuncs(funcs)
	var missing *capi.SymbolMissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"voicevox_user_dict_save"}, missing.Names)
}

func TestLibrary_ResultError(t *testing.T) {
	fake := testutil.NewFakeCore()
	lib := fake.Library()

	_, err := lib.NewOpenJtalkRc(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, capi.IsResult(err, capi.ResultNotLoadedOpenjtalkDict))

	var re *capi.ResultError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "voicevox_open_jtalk_rc_new", re.Func)
	assert.NotEmpty(t, re.Message)

	code, ok := capi.ResultCodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, capi.ResultNotLoadedOpenjtalkDict, code)
}

func TestLibrary_UndocumentedStatusIsAbiMismatch(t *testing.T) {
	funcs := testutil.NewFakeCore().Funcs()
	funcs.UserDictLoad = func(uintptr, string) int32 { return 999 }
	lib, err := capi.FromFuncs(funcs)
	require.NoError(t, err)

	dict, err := lib.NewUserDict()
	require.NoError(t, err)

	err = lib.LoadUserDict(dict, "whatever.json")
	assert.ErrorIs(t, err, capi.ErrAbiMismatch)
	assert.False(t, capi.IsResult(err, capi.ResultLoadUserDictError))
}

func TestLibrary_NullHandleIsAbiMismatch(t *testing.T) {
	funcs := testutil.NewFakeCore().Funcs()
	funcs.UserDictNew = func() uintptr { return 0 }
	lib, err := capi.FromFuncs(funcs)
	require.NoError(t, err)

	_, err = lib.NewUserDict()
	assert.ErrorIs(t, err, capi.ErrAbiMismatch)
	assert.ErrorIs(t, err, lifecycle.ErrNullHandle)
}

func TestLibrary_RejectedHandleIsDeletedInCore(t *testing.T) {
	funcs := testutil.NewFakeCore().Funcs()
	newDict := funcs.UserDictNew
	var first uintptr
	funcs.UserDictNew = func() uintptr {
		if first == 0 {
			first = newDict()
		}
		return first
	}
	var deleted []uintptr
	deleteDict := funcs.UserDictDelete
	funcs.UserDictDelete = func(h uintptr) {
		deleted = append(deleted, h)
		deleteDict(h)
	}
	lib, err := capi.FromFuncs(funcs)
	require.NoError(t, err)

	_, err = lib.NewUserDict()
	require.NoError(t, err)
	_, err = lib.NewUserDict()
	assert.ErrorIs(t, err, capi.ErrAbiMismatch)
	assert.ErrorIs(t, err, lifecycle.ErrAlreadyLive)
	assert.Equal(t, []uintptr{first}, deleted)
}

func TestLibrary_NullHandleIsNotDeleted(t *testing.T) {
	funcs := testutil.NewFakeCore().Funcs()
	funcs.OpenJtalkRcNew = func(string, *uintptr) int32 { return 0 }
	deletes := 0
	funcs.OpenJtalkRcDelete = func(uintptr) { deletes++ }
	lib, err := capi.FromFuncs(funcs)
	require.NoError(t, err)

	_, err = lib.NewOpenJtalkRc(t.TempDir())
	assert.ErrorIs(t, err, lifecycle.ErrNullHandle)
	assert.Zero(t, deletes)
}

func TestLibrary_DoubleDeleteNeverReachesCore(t *testing.T) {
	fake := testutil.NewFakeCore()
	lib := fake.Library()

	dict, err := lib.NewUserDict()
	require.NoError(t, err)
	require.NoError(t, lib.DeleteUserDict(dict))

	err = lib.DeleteUserDict(dict)
	assert.ErrorIs(t, err, lifecycle.ErrDoubleRelease)

	deletes := 0
	for _, c := range fake.Calls() {
		if c == "voicevox_user_dict_delete" {
			deletes++
		}
	}
	assert.Equal(t, 1, deletes)
	assert.Empty(t, fake.Faults())
}

func TestLibrary_UseAfterRelease(t *testing.T) {
	fake := testutil.NewFakeCore()
	lib := fake.Library()
	fx := testutil.FakeFixtures(t)

	model, err := lib.OpenVoiceModelFile(fx.SampleVoiceModel)
	require.NoError(t, err)
	require.NoError(t, lib.CloseVoiceModelFile(model))

	_, err = lib.VoiceModelMetasJSON(model)
	assert.ErrorIs(t, err, lifecycle.ErrUnknownHandle)
}

func TestLibrary_CallsAfterClose(t *testing.T) {
	lib := testutil.NewFakeCore().Library()
	require.NoError(t, lib.Close())
	require.NoError(t, lib.Close())

	_, err := lib.NewUserDict()
	assert.ErrorIs(t, err, capi.ErrLibraryClosed)
	_, err = lib.RawVersion()
	assert.ErrorIs(t, err, capi.ErrLibraryClosed)
}

func TestLibrary_UserDictWords(t *testing.T) {
	fake := testutil.NewFakeCore()
	lib := fake.Library()

	dict, err := lib.NewUserDict()
	require.NoError(t, err)

	id, err := lib.AddWord(dict, capi.NewUserDictWord("手札", "テフダ"))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	js, err := lib.UserDictJSON(dict)
	require.NoError(t, err)
	assert.Contains(t, js, id.String())
	assert.Contains(t, js, "テフダ")

	w := capi.NewUserDictWord("手札", "テフダ")
	w.Priority = 11
	err = lib.UpdateWord(dict, id, w)
	assert.True(t, capi.IsResult(err, capi.ResultInvalidUserDictWordError))

	require.NoError(t, lib.RemoveWord(dict, id))
	err = lib.RemoveWord(dict, id)
	assert.True(t, capi.IsResult(err, capi.ResultUserDictWordNotFoundError))

	_, err = lib.AddWord(dict, capi.NewUserDictWord("a\x00b", "ア"))
	assert.ErrorIs(t, err, capi.ErrInvalidArgument)

	require.NoError(t, lib.DeleteUserDict(dict))
	require.NoError(t, lib.Ledger().Verify())
	assert.NoError(t, fake.Verify())
}

func TestLibrary_SaveAndLoad(t *testing.T) {
	fake := testutil.NewFakeCore()
	lib := fake.Library()
	path := filepath.Join(t.TempDir(), "user_dict.json")

	src, err := lib.NewUserDict()
	require.NoError(t, err)
	id, err := lib.AddWord(src, capi.NewUserDictWord("手札", "テフダ"))
	require.NoError(t, err)
	require.NoError(t, lib.SaveUserDict(src, path))

	dst, err := lib.NewUserDict()
	require.NoError(t, err)
	require.NoError(t, lib.LoadUserDict(dst, path))

	js, err := lib.UserDictJSON(dst)
	require.NoError(t, err)
	assert.Contains(t, js, id.String())

	err = lib.LoadUserDict(dst, filepath.Join(t.TempDir(), "absent.json"))
	assert.True(t, capi.IsResult(err, capi.ResultLoadUserDictError))

	require.NoError(t, lib.DeleteUserDict(dst))
	require.NoError(t, lib.DeleteUserDict(src))
	assert.NoError(t, fake.Verify())
}

func TestLibrary_SynthesizerLifecycle(t *testing.T) {
	fake := testutil.NewFakeCore()
	lib := fake.Library()
	fx := testutil.FakeFixtures(t)

	ort, err := lib.LoadOnnxruntime(capi.LoadOnnxruntimeOptions{})
	require.NoError(t, err)
	again, err := lib.LoadOnnxruntime(capi.LoadOnnxruntimeOptions{})
	require.NoError(t, err)
	assert.Equal(t, ort, again, "load_once returns the process-wide runtime")

	devices, err := lib.SupportedDevicesJSON(ort)
	require.NoError(t, err)
	assert.Contains(t, devices, `"cpu":true`)

	ojt, err := lib.NewOpenJtalkRc(fx.OpenJtalkDicDir)
	require.NoError(t, err)

	opts, err := lib.DefaultInitializeOptions()
	require.NoError(t, err)
	opts.AccelerationMode = capi.AccelerationCPU
	synth, err := lib.NewSynthesizer(ort, ojt, opts)
	require.NoError(t, err)

	gpu, err := lib.IsGPUMode(synth)
	require.NoError(t, err)
	assert.False(t, gpu)

	model, err := lib.OpenVoiceModelFile(fx.SampleVoiceModel)
	require.NoError(t, err)
	id, err := lib.VoiceModelID(model)
	require.NoError(t, err)

	require.NoError(t, lib.LoadVoiceModel(synth, model))
	err = lib.LoadVoiceModel(synth, model)
	assert.True(t, capi.IsResult(err, capi.ResultModelAlreadyLoadedError))

	loaded, err := lib.IsLoadedVoiceModel(synth, id)
	require.NoError(t, err)
	assert.True(t, loaded)

	query, err := lib.CreateAudioQuery(synth, "hello", testutil.FakeStyleID)
	require.NoError(t, err)
	assert.Contains(t, query, `"kana"`)

	_, err = lib.CreateAudioQuery(synth, "hello", 42)
	assert.True(t, capi.IsResult(err, capi.ResultStyleNotFoundError))

	require.NoError(t, lib.UnloadVoiceModel(synth, id))
	err = lib.UnloadVoiceModel(synth, id)
	assert.True(t, capi.IsResult(err, capi.ResultModelNotFoundError))

	require.NoError(t, lib.DeleteSynthesizer(synth))
	require.NoError(t, lib.DeleteOpenJtalkRc(ojt))
	require.NoError(t, lib.CloseVoiceModelFile(model))
	require.NoError(t, lib.Ledger().Verify())
	assert.NoError(t, fake.Verify())
}

func TestLibrary_GPUUnavailable(t *testing.T) {
	fake := testutil.NewFakeCore()
	lib := fake.Library()
	fx := testutil.FakeFixtures(t)

	ort, err := lib.LoadOnnxruntime(capi.LoadOnnxruntimeOptions{})
	require.NoError(t, err)
	ojt, err := lib.NewOpenJtalkRc(fx.OpenJtalkDicDir)
	require.NoError(t, err)
	defer func() { require.NoError(t, lib.DeleteOpenJtalkRc(ojt)) }()

	_, err = lib.NewSynthesizer(ort, ojt, capi.InitializeOptions{AccelerationMode: capi.AccelerationGPU})
	assert.True(t, capi.IsResult(err, capi.ResultGPUSupportError))
}

func TestLibrary_OnnxruntimeFilenameOverride(t *testing.T) {
	lib := testutil.NewFakeCore().Library()

	_, err := lib.LoadOnnxruntime(capi.LoadOnnxruntimeOptions{Filename: "libonnxruntime.so"})
	assert.True(t, capi.IsResult(err, capi.ResultInitInferenceRuntimeError))

	_, err = lib.LoadOnnxruntime(capi.LoadOnnxruntimeOptions{Filename: "/opt/voicevox/libvoicevox_onnxruntime.so.1.17.3"})
	assert.NoError(t, err)
}

func TestLibrary_Version(t *testing.T) {
	fake := testutil.NewFakeCore()
	lib := fake.Library()

	v, err := lib.CheckVersion(">=0.16.0, <0.17.0")
	require.NoError(t, err)
	assert.Equal(t, "0.16.0", v.String())

	_, err = lib.CheckVersion("<0.16.0")
	assert.ErrorIs(t, err, capi.ErrAbiMismatch)

	_, err = lib.CheckVersion("not a constraint")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, capi.ErrAbiMismatch)

	fake.Version = "unknown"
	_, err = lib.Version()
	assert.ErrorIs(t, err, capi.ErrAbiMismatch)
}
