package capi

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/ebitengine/purego"
)

// Funcs is the raw function table of the C API. Field types are the purego
// shapes of the C prototypes; handles travel as uintptr and owned strings
// as *byte.
//
// Bind fills the table from a loaded library. Tests fill it with Go
// functions and hand it to FromFuncs.
type Funcs struct {
	// Globals.
	GetVersion           func() string
	ErrorResultToMessage func(code int32) string

	// ONNX Runtime. The options struct is a single const char* and
	// travels as that pointer.
	MakeDefaultLoadOnnxruntimeOptions     func() *byte
	OnnxruntimeLoadOnce                   func(options *byte, out *uintptr) int32
	OnnxruntimeCreateSupportedDevicesJSON func(onnxruntime uintptr, out **byte) int32

	// VoicevoxInitializeOptions fits one register and is passed by value.
	MakeDefaultInitializeOptions func() uint64

	// Open JTalk.
	OpenJtalkRcNew         func(dictDir string, out *uintptr) int32
	OpenJtalkRcUseUserDict func(openJtalk, userDict uintptr) int32
	OpenJtalkRcDelete      func(openJtalk uintptr)

	// Voice model files. IDs are UUIDs written to caller memory.
	VoiceModelFileOpen            func(path string, out *uintptr) int32
	VoiceModelFileID              func(model uintptr, out *[16]byte)
	VoiceModelFileCreateMetasJSON func(model uintptr) *byte
	VoiceModelFileClose           func(model uintptr)

	// Synthesizer.
	SynthesizerNew                func(onnxruntime, openJtalk uintptr, options uint64, out *uintptr) int32
	SynthesizerDelete             func(synthesizer uintptr)
	SynthesizerLoadVoiceModel     func(synthesizer, model uintptr) int32
	SynthesizerUnloadVoiceModel   func(synthesizer uintptr, id *[16]byte) int32
	SynthesizerIsGPUMode          func(synthesizer uintptr) bool
	SynthesizerIsLoadedVoiceModel func(synthesizer uintptr, id *[16]byte) bool
	SynthesizerCreateMetasJSON    func(synthesizer uintptr) *byte
	SynthesizerCreateAudioQuery   func(synthesizer uintptr, kana string, styleID uint32, out **byte) int32

	// JSONFree releases every *byte the library hands out.
	JSONFree func(json *byte)

	// User dictionary.
	UserDictNew        func() uintptr
	UserDictAddWord    func(dict uintptr, word *UserDictWordC, outUUID *[16]byte) int32
	UserDictUpdateWord func(dict uintptr, wordUUID *[16]byte, word *UserDictWordC) int32
	UserDictRemoveWord func(dict uintptr, wordUUID *[16]byte) int32
	UserDictToJSON     func(dict uintptr, out **byte) int32
	UserDictImport     func(dict, other uintptr) int32
	UserDictLoad       func(dict uintptr, path string) int32
	UserDictSave       func(dict uintptr, path string) int32
	UserDictDelete     func(dict uintptr)
}

// symbol pairs a C export with the Funcs field it binds to.
type symbol struct {
	name string
	fn   any // pointer to a Funcs field
}

// symbols lists every required export. Order is the order of the C header.
func (f *Funcs) symbols() []symbol {
	return []symbol{
		{"voicevox_get_version", &f.GetVersion},
		{"voicevox_error_result_to_message", &f.ErrorResultToMessage},
		{"voicevox_make_default_load_onnxruntime_options", &f.MakeDefaultLoadOnnxruntimeOptions},
		{"voicevox_onnxruntime_load_once", &f.OnnxruntimeLoadOnce},
		{"voicevox_onnxruntime_create_supported_devices_json", &f.OnnxruntimeCreateSupportedDevicesJSON},
		{"voicevox_make_default_initialize_options", &f.MakeDefaultInitializeOptions},
		{"voicevox_open_jtalk_rc_new", &f.OpenJtalkRcNew},
		{"voicevox_open_jtalk_rc_use_user_dict", &f.OpenJtalkRcUseUserDict},
		{"voicevox_open_jtalk_rc_delete", &f.OpenJtalkRcDelete},
		{"voicevox_voice_model_file_open", &f.VoiceModelFileOpen},
		{"voicevox_voice_model_file_id", &f.VoiceModelFileID},
		{"voicevox_voice_model_file_create_metas_json", &f.VoiceModelFileCreateMetasJSON},
		{"voicevox_voice_model_file_close", &f.VoiceModelFileClose},
		{"voicevox_synthesizer_new", &f.SynthesizerNew},
		{"voicevox_synthesizer_delete", &f.SynthesizerDelete},
		{"voicevox_synthesizer_load_voice_model", &f.SynthesizerLoadVoiceModel},
		{"voicevox_synthesizer_unload_voice_model", &f.SynthesizerUnloadVoiceModel},
		{"voicevox_synthesizer_is_gpu_mode", &f.SynthesizerIsGPUMode},
		{"voicevox_synthesizer_is_loaded_voice_model", &f.SynthesizerIsLoadedVoiceModel},
		{"voicevox_synthesizer_create_metas_json", &f.SynthesizerCreateMetasJSON},
		{"voicevox_synthesizer_create_audio_query", &f.SynthesizerCreateAudioQuery},
		{"voicevox_json_free", &f.JSONFree},
		{"voicevox_user_dict_new", &f.UserDictNew},
		{"voicevox_user_dict_add_word", &f.UserDictAddWord},
		{"voicevox_user_dict_update_word", &f.UserDictUpdateWord},
		{"voicevox_user_dict_remove_word", &f.UserDictRemoveWord},
		{"voicevox_user_dict_to_json", &f.UserDictToJSON},
		{"voicevox_user_dict_import", &f.UserDictImport},
		{"voicevox_user_dict_load", &f.UserDictLoad},
		{"voicevox_user_dict_save", &f.UserDictSave},
		{"voicevox_user_dict_delete", &f.UserDictDelete},
	}
}

// SymbolNames lists every export the harness binds, in table order.
func SymbolNames() []string {
	var f Funcs
	syms := f.symbols()
	names := make([]string, len(syms))
	for i, s := range syms {
		names[i] = s.name
	}
	return names
}

// Resolver maps an export name to its address.
type Resolver interface {
	Lookup(name string) (uintptr, error)
}

// Bind resolves every symbol and only then registers them. A library that
// lacks any export yields a *SymbolMissingError naming all of them and no
// function is registered.
func Bind(r Resolver) (Funcs, error) {
	var f Funcs
	syms := f.symbols()
	addrs := make([]uintptr, len(syms))

	// Resolve everything first so the error names every missing export.
	var missing []string
	var causes []error
	for i, s := range syms {
		addr, err := r.Lookup(s.name)
		if err != nil {
			missing = append(missing, s.name)
			causes = append(causes, err)
			continue
		}
		addrs[i] = addr
	}
	if len(missing) > 0 {
		return Funcs{}, &SymbolMissingError{Names: missing, Err: errors.Join(causes...)}
	}

	for i, s := range syms {
		purego.RegisterFunc(s.fn, addrs[i])
	}
	return f, nil
}

// validate reports nil entries as missing symbols.
func (f *Funcs) validate() error {
	var missing []string
	for _, s := range f.symbols() {
		if reflect.ValueOf(s.fn).Elem().IsNil() {
			missing = append(missing, s.name)
		}
	}
	if len(missing) > 0 {
		return &SymbolMissingError{Names: missing, Err: fmt.Errorf("%d nil entries in function table", len(missing))}
	}
	return nil
}
