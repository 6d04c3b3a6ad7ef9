package capi

import (
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/vvharness/internal/lifecycle"
	"github.com/roach88/vvharness/internal/loader"
)

// Library is a bound VOICEVOX CORE artifact.
//
// Calls may be made from several goroutines; Close waits for in-flight calls
// and makes every later call fail with ErrLibraryClosed.
type Library struct {
	// mu is read-held by every call and write-held by Close.
	mu    sync.RWMutex
	funcs Funcs

	// closer is nil for in-process tables.
	closer io.Closer
	path   string
	ledger *lifecycle.Ledger
	closed bool
}

// Open loads the artifact at path and binds every required export. On any
// failure the OS handle is released and no Library is returned.
func Open(path string) (*Library, error) {
	lib, err := loader.Open(path)
	if err != nil {
		return nil, err
	}

	funcs, err := Bind(lib)
	if err != nil {
		if cerr := lib.Close(); cerr != nil {
			return nil, fmt.Errorf("%w (closing: %v)", err, cerr)
		}
		return nil, err
	}

	return &Library{
		funcs:  funcs,
		closer: lib,
		path:   lib.Path(),
		ledger: lifecycle.NewLedger(),
	}, nil
}

// FromFuncs wraps an in-process function table.
func FromFuncs(funcs Funcs) (*Library, error) {
	if err := funcs.validate(); err != nil {
		return nil, err
	}
	return &Library{
		funcs:  funcs,
		path:   "<in-process>",
		ledger: lifecycle.NewLedger(),
	}, nil
}

// Path returns where the library was loaded from.
func (l *Library) Path() string { return l.path }

// Ledger returns the handle ledger shared by every wrapper.
func (l *Library) Ledger() *lifecycle.Ledger { return l.ledger }

// Close unloads the library. It does not release outstanding handles; call
// Ledger().Verify first to detect leaks.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// enter read-locks the library for one call. The returned func unlocks.
func (l *Library) enter() (func(), error) {
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return nil, ErrLibraryClosed
	}
	return l.mu.RUnlock, nil
}

// status turns a raw status into an error.
func (l *Library) status(fn string, code int32) error {
	rc := ResultCode(code)
	if rc == ResultOK {
		return nil
	}
	if !rc.Known() {
		return fmt.Errorf("%w: %s returned undocumented status %d", ErrAbiMismatch, fn, code)
	}
	return &ResultError{Func: fn, Code: rc, Message: l.funcs.ErrorResultToMessage(code)}
}

// takeJSON copies an owned string and frees it.
func (l *Library) takeJSON(fn string, p *byte) (string, error) {
	if p == nil {
		return "", fmt.Errorf("%w: %s returned NULL", ErrAbiMismatch, fn)
	}
	s := goString(p)
	l.funcs.JSONFree(p)
	return s, nil
}

// requireLive rejects handles the ledger does not hold, before they reach C.
func (l *Library) requireLive(kind lifecycle.Kind, h uintptr) error {
	if !l.ledger.Live(kind, h) {
		return fmt.Errorf("%w: %s#%x is not live", lifecycle.ErrUnknownHandle, kind, h)
	}
	return nil
}

// acquire records a new handle. A NULL handle from a call that reported OK
// is an ABI violation. When the ledger rejects a non-NULL handle the core
// still owns an object at h, so del gives it back before the error returns.
func (l *Library) acquire(fn string, kind lifecycle.Kind, h uintptr, del func(uintptr)) error {
	if err := l.ledger.Acquire(kind, h); err != nil {
		if h != 0 {
			del(h)
		}
		return fmt.Errorf("%w: %s: %w", ErrAbiMismatch, fn, err)
	}
	return nil
}

// RawVersion returns voicevox_get_version verbatim.
func (l *Library) RawVersion() (string, error) {
	done, err := l.enter()
	if err != nil {
		return "", err
	}
	defer done()
	return l.funcs.GetVersion(), nil
}

// ErrorMessage returns the library's message for code.
func (l *Library) ErrorMessage(code ResultCode) (string, error) {
	done, err := l.enter()
	if err != nil {
		return "", err
	}
	defer done()
	return l.funcs.ErrorResultToMessage(int32(code)), nil
}

// LoadOnnxruntime loads ONNX Runtime once per process. The returned handle
// is a process-wide singleton and is never released.
func (l *Library) LoadOnnxruntime(opts LoadOnnxruntimeOptions) (Onnxruntime, error) {
	done, err := l.enter()
	if err != nil {
		return 0, err
	}
	defer done()

	const fn = "voicevox_onnxruntime_load_once"
	var pinner runtime.Pinner
	defer pinner.Unpin()

	// The struct is one pointer wide; it travels as that pointer. The
	// default points at a string the library owns.
	raw := l.funcs.MakeDefaultLoadOnnxruntimeOptions()
	if opts.Filename != "" {
		buf, err := cBytes("onnxruntime filename", opts.Filename)
		if err != nil {
			return 0, err
		}
		// Pinned until the call returns.
		pinner.Pin(&buf[0])
		raw = &buf[0]
	}

	var out uintptr
	if err := l.status(fn, l.funcs.OnnxruntimeLoadOnce(raw, &out)); err != nil {
		return 0, err
	}
	// Not tracked by the ledger: there is no delete for it.
	if out == 0 {
		return 0, fmt.Errorf("%w: %s returned NULL", ErrAbiMismatch, fn)
	}
	return Onnxruntime(out), nil
}

// SupportedDevicesJSON reports the devices the runtime can use.
func (l *Library) SupportedDevicesJSON(ort Onnxruntime) (string, error) {
	done, err := l.enter()
	if err != nil {
		return "", err
	}
	defer done()

	const fn = "voicevox_onnxruntime_create_supported_devices_json"
	if ort == 0 {
		return "", fmt.Errorf("%w: %s: onnxruntime is NULL", ErrInvalidArgument, fn)
	}
	var out *byte
	if err := l.status(fn, l.funcs.OnnxruntimeCreateSupportedDevicesJSON(uintptr(ort), &out)); err != nil {
		return "", err
	}
	return l.takeJSON(fn, out)
}

// DefaultInitializeOptions returns the library's synthesizer defaults.
func (l *Library) DefaultInitializeOptions() (InitializeOptions, error) {
	done, err := l.enter()
	if err != nil {
		return InitializeOptions{}, err
	}
	defer done()
	// The struct comes back by value in a single register.
	return UnpackInitializeOptions(l.funcs.MakeDefaultInitializeOptions()), nil
}

// NewOpenJtalkRc loads the Open JTalk system dictionary from dictDir.
func (l *Library) NewOpenJtalkRc(dictDir string) (OpenJtalkRc, error) {
	done, err := l.enter()
	if err != nil {
		return 0, err
	}
	defer done()

	const fn = "voicevox_open_jtalk_rc_new"
	if err := checkCString("dictionary directory", dictDir); err != nil {
		return 0, err
	}
	var out uintptr
	if err := l.status(fn, l.funcs.OpenJtalkRcNew(dictDir, &out)); err != nil {
		return 0, err
	}
	if err := l.acquire(fn, KindOpenJtalkRc, out, l.funcs.OpenJtalkRcDelete); err != nil {
		return 0, err
	}
	return OpenJtalkRc(out), nil
}

// UseUserDict attaches dict to the Open JTalk instance.
func (l *Library) UseUserDict(ojt OpenJtalkRc, dict UserDict) error {
	done, err := l.enter()
	if err != nil {
		return err
	}
	defer done()

	if err := l.requireLive(KindOpenJtalkRc, uintptr(ojt)); err != nil {
		return err
	}
	if err := l.requireLive(KindUserDict, uintptr(dict)); err != nil {
		return err
	}
	return l.status("voicevox_open_jtalk_rc_use_user_dict",
		l.funcs.OpenJtalkRcUseUserDict(uintptr(ojt), uintptr(dict)))
}

// DeleteOpenJtalkRc releases the instance. A second delete is refused.
func (l *Library) DeleteOpenJtalkRc(ojt OpenJtalkRc) error {
	done, err := l.enter()
	if err != nil {
		return err
	}
	defer done()

	// The ledger refuses double and foreign deletes before C sees them.
	if err := l.ledger.Release(KindOpenJtalkRc, uintptr(ojt)); err != nil {
		return err
	}
	l.funcs.OpenJtalkRcDelete(uintptr(ojt))
	return nil
}

// OpenVoiceModelFile opens a .vvm archive.
func (l *Library) OpenVoiceModelFile(path string) (VoiceModelFile, error) {
	done, err := l.enter()
	if err != nil {
		return 0, err
	}
	defer done()

	const fn = "voicevox_voice_model_file_open"
	if err := checkCString("model path", path); err != nil {
		return 0, err
	}
	var out uintptr
	if err := l.status(fn, l.funcs.VoiceModelFileOpen(path, &out)); err != nil {
		return 0, err
	}
	if err := l.acquire(fn, KindVoiceModelFile, out, l.funcs.VoiceModelFileClose); err != nil {
		return 0, err
	}
	return VoiceModelFile(out), nil
}

// VoiceModelID returns the model's UUID.
func (l *Library) VoiceModelID(model VoiceModelFile) (VoiceModelID, error) {
	done, err := l.enter()
	if err != nil {
		return VoiceModelID{}, err
	}
	defer done()

	if err := l.requireLive(KindVoiceModelFile, uintptr(model)); err != nil {
		return VoiceModelID{}, err
	}
	var id [16]byte
	l.funcs.VoiceModelFileID(uintptr(model), &id)
	return VoiceModelID(id), nil
}

// VoiceModelMetasJSON returns the model's speaker metadata.
func (l *Library) VoiceModelMetasJSON(model VoiceModelFile) (string, error) {
	done, err := l.enter()
	if err != nil {
		return "", err
	}
	defer done()

	if err := l.requireLive(KindVoiceModelFile, uintptr(model)); err != nil {
		return "", err
	}
	const fn = "voicevox_voice_model_file_create_metas_json"
	return l.takeJSON(fn, l.funcs.VoiceModelFileCreateMetasJSON(uintptr(model)))
}

// CloseVoiceModelFile releases the model file.
func (l *Library) CloseVoiceModelFile(model VoiceModelFile) error {
	done, err := l.enter()
	if err != nil {
		return err
	}
	defer done()

	if err := l.ledger.Release(KindVoiceModelFile, uintptr(model)); err != nil {
		return err
	}
	l.funcs.VoiceModelFileClose(uintptr(model))
	return nil
}

// NewSynthesizer creates a synthesizer bound to the runtime and Open JTalk.
func (l *Library) NewSynthesizer(ort Onnxruntime, ojt OpenJtalkRc, opts InitializeOptions) (Synthesizer, error) {
	done, err := l.enter()
	if err != nil {
		return 0, err
	}
	defer done()

	const fn = "voicevox_synthesizer_new"
	if ort == 0 {
		return 0, fmt.Errorf("%w: %s: onnxruntime is NULL", ErrInvalidArgument, fn)
	}
	if err := l.requireLive(KindOpenJtalkRc, uintptr(ojt)); err != nil {
		return 0, err
	}
	var out uintptr
	// Options are passed by value as their register image.
	if err := l.status(fn, l.funcs.SynthesizerNew(uintptr(ort), uintptr(ojt), opts.Pack(), &out)); err != nil {
		return 0, err
	}
	if err := l.acquire(fn, KindSynthesizer, out, l.funcs.SynthesizerDelete); err != nil {
		return 0, err
	}
	return Synthesizer(out), nil
}

// DeleteSynthesizer releases the synthesizer.
func (l *Library) DeleteSynthesizer(synth Synthesizer) error {
	done, err := l.enter()
	if err != nil {
		return err
	}
	defer done()

	if err := l.ledger.Release(KindSynthesizer, uintptr(synth)); err != nil {
		return err
	}
	l.funcs.SynthesizerDelete(uintptr(synth))
	return nil
}

// LoadVoiceModel loads every style of model into the synthesizer.
func (l *Library) LoadVoiceModel(synth Synthesizer, model VoiceModelFile) error {
	done, err := l.enter()
	if err != nil {
		return err
	}
	defer done()

	if err := l.requireLive(KindSynthesizer, uintptr(synth)); err != nil {
		return err
	}
	if err := l.requireLive(KindVoiceModelFile, uintptr(model)); err != nil {
		return err
	}
	return l.status("voicevox_synthesizer_load_voice_model",
		l.funcs.SynthesizerLoadVoiceModel(uintptr(synth), uintptr(model)))
}

// UnloadVoiceModel drops a loaded model by ID.
func (l *Library) UnloadVoiceModel(synth Synthesizer, id VoiceModelID) error {
	done, err := l.enter()
	if err != nil {
		return err
	}
	defer done()

	if err := l.requireLive(KindSynthesizer, uintptr(synth)); err != nil {
		return err
	}
	// The C side takes a pointer to the 16 UUID bytes.
	raw := [16]byte(id)
	return l.status("voicevox_synthesizer_unload_voice_model",
		l.funcs.SynthesizerUnloadVoiceModel(uintptr(synth), &raw))
}

// IsGPUMode reports whether the synthesizer runs on a GPU.
func (l *Library) IsGPUMode(synth Synthesizer) (bool, error) {
	done, err := l.enter()
	if err != nil {
		return false, err
	}
	defer done()

	if err := l.requireLive(KindSynthesizer, uintptr(synth)); err != nil {
		return false, err
	}
	return l.funcs.SynthesizerIsGPUMode(uintptr(synth)), nil
}

// IsLoadedVoiceModel reports whether the model ID is loaded.
func (l *Library) IsLoadedVoiceModel(synth Synthesizer, id VoiceModelID) (bool, error) {
	done, err := l.enter()
	if err != nil {
		return false, err
	}
	defer done()

	if err := l.requireLive(KindSynthesizer, uintptr(synth)); err != nil {
		return false, err
	}
	raw := [16]byte(id)
	return l.funcs.SynthesizerIsLoadedVoiceModel(uintptr(synth), &raw), nil
}

// SynthesizerMetasJSON returns the metadata of every loaded model.
func (l *Library) SynthesizerMetasJSON(synth Synthesizer) (string, error) {
	done, err := l.enter()
	if err != nil {
		return "", err
	}
	defer done()

	if err := l.requireLive(KindSynthesizer, uintptr(synth)); err != nil {
		return "", err
	}
	return l.takeJSON("voicevox_synthesizer_create_metas_json",
		l.funcs.SynthesizerCreateMetasJSON(uintptr(synth)))
}

// CreateAudioQuery analyzes text and returns the AudioQuery JSON.
func (l *Library) CreateAudioQuery(synth Synthesizer, text string, style StyleID) (string, error) {
	done, err := l.enter()
	if err != nil {
		return "", err
	}
	defer done()

	const fn = "voicevox_synthesizer_create_audio_query"
	if err := l.requireLive(KindSynthesizer, uintptr(synth)); err != nil {
		return "", err
	}
	if err := checkCString("text", text); err != nil {
		return "", err
	}
	var out *byte
	if err := l.status(fn, l.funcs.SynthesizerCreateAudioQuery(uintptr(synth), text, uint32(style), &out)); err != nil {
		return "", err
	}
	return l.takeJSON(fn, out)
}

// NewUserDict creates an empty user dictionary.
func (l *Library) NewUserDict() (UserDict, error) {
	done, err := l.enter()
	if err != nil {
		return 0, err
	}
	defer done()

	const fn = "voicevox_user_dict_new"
	// user_dict_new cannot fail; a NULL here is an ABI violation.
	h := l.funcs.UserDictNew()
	if err := l.acquire(fn, KindUserDict, h, l.funcs.UserDictDelete); err != nil {
		return 0, err
	}
	return UserDict(h), nil
}

// AddWord adds word and returns the UUID the library assigned to it.
func (l *Library) AddWord(dict UserDict, word UserDictWord) (uuid.UUID, error) {
	done, err := l.enter()
	if err != nil {
		return uuid.Nil, err
	}
	defer done()

	if err := l.requireLive(KindUserDict, uintptr(dict)); err != nil {
		return uuid.Nil, err
	}
	// The C struct and its strings stay pinned for the call.
	var pinner runtime.Pinner
	defer pinner.Unpin()
	c, err := word.cWord(&pinner)
	if err != nil {
		return uuid.Nil, err
	}

	// The library writes the new word's UUID into id.
	var id uuid.UUID
	code := l.funcs.UserDictAddWord(uintptr(dict), c, (*[16]byte)(&id))
	if err := l.status("voicevox_user_dict_add_word", code); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// UpdateWord replaces the word stored under id.
func (l *Library) UpdateWord(dict UserDict, id uuid.UUID, word UserDictWord) error {
	done, err := l.enter()
	if err != nil {
		return err
	}
	defer done()

	if err := l.requireLive(KindUserDict, uintptr(dict)); err != nil {
		return err
	}
	var pinner runtime.Pinner
	defer pinner.Unpin()
	c, err := word.cWord(&pinner)
	if err != nil {
		return err
	}
	return l.status("voicevox_user_dict_update_word",
		l.funcs.UserDictUpdateWord(uintptr(dict), (*[16]byte)(&id), c))
}

// RemoveWord deletes the word stored under id.
func (l *Library) RemoveWord(dict UserDict, id uuid.UUID) error {
	done, err := l.enter()
	if err != nil {
		return err
	}
	defer done()

	if err := l.requireLive(KindUserDict, uintptr(dict)); err != nil {
		return err
	}
	return l.status("voicevox_user_dict_remove_word",
		l.funcs.UserDictRemoveWord(uintptr(dict), (*[16]byte)(&id)))
}

// UserDictJSON serializes the dictionary.
func (l *Library) UserDictJSON(dict UserDict) (string, error) {
	done, err := l.enter()
	if err != nil {
		return "", err
	}
	defer done()

	const fn = "voicevox_user_dict_to_json"
	if err := l.requireLive(KindUserDict, uintptr(dict)); err != nil {
		return "", err
	}
	var out *byte
	if err := l.status(fn, l.funcs.UserDictToJSON(uintptr(dict), &out)); err != nil {
		return "", err
	}
	return l.takeJSON(fn, out)
}

// ImportUserDict merges every word of other into dict.
func (l *Library) ImportUserDict(dict, other UserDict) error {
	done, err := l.enter()
	if err != nil {
		return err
	}
	defer done()

	if err := l.requireLive(KindUserDict, uintptr(dict)); err != nil {
		return err
	}
	if err := l.requireLive(KindUserDict, uintptr(other)); err != nil {
		return err
	}
	return l.status("voicevox_user_dict_import",
		l.funcs.UserDictImport(uintptr(dict), uintptr(other)))
}

// LoadUserDict reads a dictionary file into dict.
func (l *Library) LoadUserDict(dict UserDict, path string) error {
	done, err := l.enter()
	if err != nil {
		return err
	}
	defer done()

	if err := l.requireLive(KindUserDict, uintptr(dict)); err != nil {
		return err
	}
	if err := checkCString("dictionary path", path); err != nil {
		return err
	}
	return l.status("voicevox_user_dict_load", l.funcs.UserDictLoad(uintptr(dict), path))
}

// SaveUserDict writes dict to path.
func (l *Library) SaveUserDict(dict UserDict, path string) error {
	done, err := l.enter()
	if err != nil {
		return err
	}
	defer done()

	if err := l.requireLive(KindUserDict, uintptr(dict)); err != nil {
		return err
	}
	if err := checkCString("dictionary path", path); err != nil {
		return err
	}
	return l.status("voicevox_user_dict_save", l.funcs.UserDictSave(uintptr(dict), path))
}

// DeleteUserDict releases the dictionary.
func (l *Library) DeleteUserDict(dict UserDict) error {
	done, err := l.enter()
	if err != nil {
		return err
	}
	defer done()

	if err := l.ledger.Release(KindUserDict, uintptr(dict)); err != nil {
		return err
	}
	l.funcs.UserDictDelete(uintptr(dict))
	return nil
}
