package testutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
	"unsafe"

	"github.com/google/uuid"

	"github.com/roach88/vvharness/internal/capi"
)

// Fake core defaults.
const (
	FakeCoreVersion        = "0.16.0"
	FakeOnnxruntimeVersion = "1.17.3"
	FakeStyleID            = capi.StyleID(0)

	fakeOnnxruntimeFilename = "libvoicevox_onnxruntime.so." + FakeOnnxruntimeVersion
	fakeUnknownKana         = "ア'ルファベット"
)

// FakeCore is an in-process stand-in for the VOICEVOX CORE C API. It keeps
// just enough state to make the documented contracts observable: user
// dictionaries change the kana of an AudioQuery, handles must be released,
// and owned JSON buffers must go back through JSONFree.
//
// Faults (double deletes, frees of foreign pointers, unfreed buffers) are
// recorded rather than crashing; Verify reports them.
type FakeCore struct {
	// Version is returned by voicevox_get_version.
	Version string

	// Stderr receives library chatter. Nil discards it.
	Stderr io.Writer

	// VideoCards, when set, makes synthesizer creation print the DirectML
	// adapter listing the Windows build emits.
	VideoCards []string

	// AnnounceOnnxruntime makes load_once log the runtime version.
	AnnounceOnnxruntime bool

	// GPUAvailable allows AccelerationGPU.
	GPUAvailable bool

	// Now stamps chatter lines. Defaults to time.Now.
	Now func() time.Time

	// mu is held for the whole of each C call, from enter to return.
	mu      sync.Mutex
	handles *HandleSource
	uuids   *SequentialUUIDs
	ortName []byte
	ort     uintptr
	dicts   map[uintptr]*fakeDict
	ojts    map[uintptr]*fakeOpenJtalk
	models  map[uintptr]*fakeModel
	synths  map[uintptr]*fakeSynth
	freed   map[uintptr]string // released handle -> kind
	pinned  map[*byte][]byte   // owned JSON buffers not yet freed
	faults  []string
	calls   []string
}

// fakeWord is a dictionary entry in the core's JSON form.
type fakeWord struct {
	Surface       string `json:"surface"`
	Pronunciation string `json:"pronunciation"`
	AccentType    uint64 `json:"accent_type"`
	WordType      string `json:"word_type"`
	Priority      uint32 `json:"priority"`
}

type fakeDict struct {
	words map[uuid.UUID]fakeWord
}

// fakeOpenJtalk holds the words of the last dictionary it was given.
type fakeOpenJtalk struct {
	dictDir string
	words   map[uuid.UUID]fakeWord
}

type fakeModel struct {
	path string
	id   uuid.UUID
}

type fakeSynth struct {
	ojt    *fakeOpenJtalk
	opts   capi.InitializeOptions
	loaded []uuid.UUID
}

var fakeWordTypes = map[capi.UserDictWordType]string{
	capi.WordTypeProperNoun: "PROPER_NOUN",
	capi.WordTypeCommonNoun: "COMMON_NOUN",
	capi.WordTypeVerb:       "VERB",
	capi.WordTypeAdjective:  "ADJECTIVE",
	capi.WordTypeSuffix:     "SUFFIX",
}

// NewFakeCore returns a silent fake with deterministic handles and UUIDs.
func NewFakeCore() *FakeCore {
	name := append([]byte(fakeOnnxruntimeFilename), 0)
	return &FakeCore{
		Version: FakeCoreVersion,
		Now:     time.Now,
		handles: NewHandleSource(0),
		uuids:   NewSequentialUUIDs(0),
		ortName: name,
		dicts:   make(map[uintptr]*fakeDict),
		ojts:    make(map[uintptr]*fakeOpenJtalk),
		models:  make(map[uintptr]*fakeModel),
		synths:  make(map[uintptr]*fakeSynth),
		freed:   make(map[uintptr]string),
		pinned:  make(map[*byte][]byte),
	}
}

// Funcs returns the function table backed by this fake.
func (f *FakeCore) Funcs() capi.Funcs {
	return capi.Funcs{
		GetVersion:                            f.getVersion,
		ErrorResultToMessage:                  f.errorResultToMessage,
		MakeDefaultLoadOnnxruntimeOptions:     f.makeDefaultLoadOnnxruntimeOptions,
		OnnxruntimeLoadOnce:                   f.onnxruntimeLoadOnce,
		OnnxruntimeCreateSupportedDevicesJSON: f.supportedDevicesJSON,
		MakeDefaultInitializeOptions:          f.makeDefaultInitializeOptions,
		OpenJtalkRcNew:                        f.openJtalkRcNew,
		OpenJtalkRcUseUserDict:                f.openJtalkRcUseUserDict,
		OpenJtalkRcDelete:                     f.openJtalkRcDelete,
		VoiceModelFileOpen:                    f.voiceModelFileOpen,
		VoiceModelFileID:                      f.voiceModelFileID,
		VoiceModelFileCreateMetasJSON:         f.voiceModelFileMetasJSON,
		VoiceModelFileClose:                   f.voiceModelFileClose,
		SynthesizerNew:                        f.synthesizerNew,
		SynthesizerDelete:                     f.synthesizerDelete,
		SynthesizerLoadVoiceModel:             f.synthesizerLoadVoiceModel,
		SynthesizerUnloadVoiceModel:           f.synthesizerUnloadVoiceModel,
		SynthesizerIsGPUMode:                  f.synthesizerIsGPUMode,
		SynthesizerIsLoadedVoiceModel:         f.synthesizerIsLoadedVoiceModel,
		SynthesizerCreateMetasJSON:            f.synthesizerMetasJSON,
		SynthesizerCreateAudioQuery:           f.synthesizerCreateAudioQuery,
		JSONFree:                              f.jsonFree,
		UserDictNew:                           f.userDictNew,
		UserDictAddWord:                       f.userDictAddWord,
		UserDictUpdateWord:                    f.userDictUpdateWord,
		UserDictRemoveWord:                    f.userDictRemoveWord,
		UserDictToJSON:                        f.userDictToJSON,
		UserDictImport:                        f.userDictImport,
		UserDictLoad:                          f.userDictLoad,
		UserDictSave:                          f.userDictSave,
		UserDictDelete:                        f.userDictDelete,
	}
}

// Library wraps the fake in a capi.Library.
func (f *FakeCore) Library() *capi.Library {
	lib, err := capi.FromFuncs(f.Funcs())
	if err != nil {
		panic(fmt.Sprintf("fake core: incomplete function table: %v", err))
	}
	return lib
}

// Calls returns the C entry points invoked so far, in order.
func (f *FakeCore) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// Faults returns contract violations observed so far.
func (f *FakeCore) Faults() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.faults)
}

// Verify fails if any fault was recorded, any handle is still open, or any
// JSON buffer was never freed.
func (f *FakeCore) Verify() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	for _, fault := range f.faults {
		errs = append(errs, errors.New(fault))
	}
	if n := len(f.pinned); n > 0 {
		errs = append(errs, fmt.Errorf("%d JSON buffer(s) never freed", n))
	}
	live := len(f.dicts) + len(f.ojts) + len(f.models) + len(f.synths)
	if live > 0 {
		errs = append(errs, fmt.Errorf("%d handle(s) still open", live))
	}
	return errors.Join(errs...)
}

// enter records a call and locks the fake. Every C entry point starts here.
func (f *FakeCore) enter(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
}

// fault records a contract violation. Callers hold mu.
func (f *FakeCore) fault(format string, args ...any) {
	f.faults = append(f.faults, fmt.Sprintf(format, args...))
}

// chatter writes one log line in the core's tracing format.
func (f *FakeCore) chatter(target, msg string) {
	if f.Stderr == nil {
		return
	}
	ts := f.Now().UTC().Format("2006-01-02T15:04:05.000000Z")
	fmt.Fprintf(f.Stderr, "%s  INFO %s: %s\n", ts, target, msg)
}

// ownedJSON allocates a buffer the caller must hand back to JSONFree.
func (f *FakeCore) ownedJSON(v any) *byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("fake core: marshal: %v", err))
	}
	buf := append(data, 0)
	f.pinned[&buf[0]] = buf
	return &buf[0]
}

// release reports a delete of a handle that is not open.
func (f *FakeCore) release(kind string, h uintptr) {
	if prev, ok := f.freed[h]; ok {
		f.fault("double release of %s#%#x (already released as %s)", kind, h, prev)
		return
	}
	f.fault("release of unknown %s#%#x", kind, h)
}

// getVersion implements voicevox_get_version.
func (f *FakeCore) getVersion() string {
	f.enter("voicevox_get_version")
	defer f.mu.Unlock()
	return f.Version
}

// errorResultToMessage implements voicevox_error_result_to_message.
func (f *FakeCore) errorResultToMessage(code int32) string {
	f.enter("voicevox_error_result_to_message")
	defer f.mu.Unlock()

	rc := capi.ResultCode(code)
	if !rc.Known() {
		return "不明なエラー"
	}
	name := strings.TrimPrefix(rc.String(), "VOICEVOX_RESULT_")
	return strings.ToLower(strings.ReplaceAll(name, "_", " "))
}

// makeDefaultLoadOnnxruntimeOptions implements voicevox_make_default_load_onnxruntime_options.
func (f *FakeCore) makeDefaultLoadOnnxruntimeOptions() *byte {
	f.enter("voicevox_make_default_load_onnxruntime_options")
	defer f.mu.Unlock()
	return &f.ortName[0]
}

// onnxruntimeLoadOnce implements voicevox_onnxruntime_load_once.
func (f *FakeCore) onnxruntimeLoadOnce(options *byte, out *uintptr) int32 {
	f.enter("voicevox_onnxruntime_load_once")
	defer f.mu.Unlock()

	if options == nil {
		return int32(capi.ResultInitInferenceRuntimeError)
	}
	filename := unsafe.String(options, cStrlen(options))
	if !strings.HasPrefix(filepath.Base(filename), "libvoicevox_onnxruntime") &&
		!strings.HasPrefix(filepath.Base(filename), "voicevox_onnxruntime") {
		return int32(capi.ResultInitInferenceRuntimeError)
	}
	if f.ort == 0 {
		f.ort = f.handles.Next()
		if f.AnnounceOnnxruntime {
			f.chatter("voicevox_core::infer::runtimes::onnxruntime",
				fmt.Sprintf("Loaded onnxruntime %s from %s", FakeOnnxruntimeVersion, filename))
		}
	}
	*out = f.ort
	return int32(capi.ResultOK)
}

// cString copies the NUL-terminated string at p. NULL yields "".
func cString(p *byte) string {
	if p == nil {
		return ""
	}
	return string(unsafe.Slice(p, cStrlen(p)))
}

// wordFromC copies a word out of the caller's C struct.
func wordFromC(c *capi.UserDictWordC) capi.UserDictWord {
	return capi.UserDictWord{
		Surface:       cString(c.Surface),
		Pronunciation: cString(c.Pronunciation),
		AccentType:    c.AccentType,
		WordType:      capi.UserDictWordType(c.WordType),
		Priority:      c.Priority,
	}
}

// cStrlen counts the bytes before the NUL that terminates p.
func cStrlen(p *byte) int {
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return n
}

// supportedDevicesJSON implements voicevox_onnxruntime_create_supported_devices_json.
func (f *FakeCore) supportedDevicesJSON(ort uintptr, out **byte) int32 {
	f.enter("voicevox_onnxruntime_create_supported_devices_json")
	defer f.mu.Unlock()

	if ort == 0 || ort != f.ort {
		return int32(capi.ResultGetSupportedDevicesError)
	}
	*out = f.ownedJSON(map[string]bool{
		"cpu":  true,
		"cuda": false,
		"dml":  f.GPUAvailable,
	})
	return int32(capi.ResultOK)
}

// makeDefaultInitializeOptions implements voicevox_make_default_initialize_options.
func (f *FakeCore) makeDefaultInitializeOptions() uint64 {
	f.enter("voicevox_make_default_initialize_options")
	defer f.mu.Unlock()
	return capi.InitializeOptions{AccelerationMode: capi.AccelerationAuto, CPUNumThreads: 0}.Pack()
}

// openJtalkRcNew implements voicevox_open_jtalk_rc_new.
func (f *FakeCore) openJtalkRcNew(dictDir string, out *uintptr) int32 {
	f.enter("voicevox_open_jtalk_rc_new")
	defer f.mu.Unlock()

	info, err := os.Stat(dictDir)
	if err != nil || !info.IsDir() {
		return int32(capi.ResultNotLoadedOpenjtalkDict)
	}
	h := f.handles.Next()
	f.ojts[h] = &fakeOpenJtalk{dictDir: dictDir, words: map[uuid.UUID]fakeWord{}}
	*out = h
	return int32(capi.ResultOK)
}

// openJtalkRcUseUserDict implements voicevox_open_jtalk_rc_use_user_dict.
func (f *FakeCore) openJtalkRcUseUserDict(ojt, dict uintptr) int32 {
	f.enter("voicevox_open_jtalk_rc_use_user_dict")
	defer f.mu.Unlock()

	o, ok := f.ojts[ojt]
	d, dok := f.dicts[dict]
	if !ok || !dok {
		return int32(capi.ResultUseUserDictError)
	}
	// The core copies the dictionary at the time of the call.
	o.words = maps.Clone(d.words)
	return int32(capi.ResultOK)
}

// openJtalkRcDelete implements voicevox_open_jtalk_rc_delete.
func (f *FakeCore) openJtalkRcDelete(ojt uintptr) {
	f.enter("voicevox_open_jtalk_rc_delete")
	defer f.mu.Unlock()

	if _, ok := f.ojts[ojt]; !ok {
		f.release("open_jtalk_rc", ojt)
		return
	}
	delete(f.ojts, ojt)
	f.freed[ojt] = "open_jtalk_rc"
}

// voiceModelFileOpen implements voicevox_voice_model_file_open.
func (f *FakeCore) voiceModelFileOpen(path string, out *uintptr) int32 {
	f.enter("voicevox_voice_model_file_open")
	defer f.mu.Unlock()

	if filepath.Ext(path) != ".vvm" {
		return int32(capi.ResultOpenZipFileError)
	}
	if _, err := os.Stat(path); err != nil {
		return int32(capi.ResultOpenZipFileError)
	}
	h := f.handles.Next()
	f.models[h] = &fakeModel{
		path: path,
		id:   uuid.NewSHA1(uuid.NameSpaceURL, []byte("vvm:"+filepath.Base(path))),
	}
	*out = h
	return int32(capi.ResultOK)
}

// voiceModelFileID implements voicevox_voice_model_file_id.
func (f *FakeCore) voiceModelFileID(model uintptr, out *[16]byte) {
	f.enter("voicevox_voice_model_file_id")
	defer f.mu.Unlock()

	m, ok := f.models[model]
	if !ok {
		f.fault("voice_model_file_id on unknown model %#x", model)
		return
	}
	*out = m.id
}

// modelMetas describes one speaker with a single talk style.
func (f *FakeCore) modelMetas(m *fakeModel) []map[string]any {
	return []map[string]any{{
		"name":         "フェイク",
		"speaker_uuid": uuid.NewSHA1(m.id, []byte("speaker")).String(),
		"version":      "0.0.1",
		"styles": []map[string]any{
			{"name": "ノーマル", "id": uint32(FakeStyleID), "type": "talk"},
		},
	}}
}

// voiceModelFileMetasJSON implements voicevox_voice_model_file_create_metas_json.
func (f *FakeCore) voiceModelFileMetasJSON(model uintptr) *byte {
	f.enter("voicevox_voice_model_file_create_metas_json")
	defer f.mu.Unlock()

	m, ok := f.models[model]
	if !ok {
		f.fault("create_metas_json on unknown model %#x", model)
		return nil
	}
	return f.ownedJSON(f.modelMetas(m))
}

// voiceModelFileClose implements voicevox_voice_model_file_close.
func (f *FakeCore) voiceModelFileClose(model uintptr) {
	f.enter("voicevox_voice_model_file_close")
	defer f.mu.Unlock()

	if _, ok := f.models[model]; !ok {
		f.release("voice_model_file", model)
		return
	}
	delete(f.models, model)
	f.freed[model] = "voice_model_file"
}

// synthesizerNew implements voicevox_synthesizer_new.
func (f *FakeCore) synthesizerNew(ort, ojt uintptr, options uint64, out *uintptr) int32 {
	f.enter("voicevox_synthesizer_new")
	defer f.mu.Unlock()

	if ort == 0 || ort != f.ort {
		return int32(capi.ResultInitInferenceRuntimeError)
	}
	o, ok := f.ojts[ojt]
	if !ok {
		return int32(capi.ResultNotLoadedOpenjtalkDict)
	}
	opts := capi.UnpackInitializeOptions(options)
	if opts.AccelerationMode == capi.AccelerationGPU && !f.GPUAvailable {
		return int32(capi.ResultGPUSupportError)
	}
	// Windows builds list DirectML adapters on stderr.
	if len(f.VideoCards) > 0 {
		const target = "voicevox_core::synthesizer::blocking"
		f.chatter(target, "検出されたGPU (DirectMLには1番目のGPUが使われます):")
		for _, card := range f.VideoCards {
			f.chatter(target, fmt.Sprintf("  - %q (8.0 GiB)", card))
		}
	}
	h := f.handles.Next()
	f.synths[h] = &fakeSynth{ojt: o, opts: opts}
	*out = h
	return int32(capi.ResultOK)
}

// synthesizerDelete implements voicevox_synthesizer_delete.
func (f *FakeCore) synthesizerDelete(synth uintptr) {
	f.enter("voicevox_synthesizer_delete")
	defer f.mu.Unlock()

	if _, ok := f.synths[synth]; !ok {
		f.release("synthesizer", synth)
		return
	}
	delete(f.synths, synth)
	f.freed[synth] = "synthesizer"
}

// synthesizerLoadVoiceModel implements voicevox_synthesizer_load_voice_model.
func (f *FakeCore) synthesizerLoadVoiceModel(synth, model uintptr) int32 {
	f.enter("voicevox_synthesizer_load_voice_model")
	defer f.mu.Unlock()

	s, ok := f.synths[synth]
	m, mok := f.models[model]
	if !ok || !mok {
		return int32(capi.ResultInvalidModelDataError)
	}
	if slices.Contains(s.loaded, m.id) {
		return int32(capi.ResultModelAlreadyLoadedError)
	}
	for _, id := range s.loaded {
		if id != m.id {
			// Every fake model exposes the same style ID.
			return int32(capi.ResultStyleAlreadyLoadedError)
		}
	}
	s.loaded = append(s.loaded, m.id)
	return int32(capi.ResultOK)
}

// synthesizerUnloadVoiceModel implements voicevox_synthesizer_unload_voice_model.
func (f *FakeCore) synthesizerUnloadVoiceModel(synth uintptr, id *[16]byte) int32 {
	f.enter("voicevox_synthesizer_unload_voice_model")
	defer f.mu.Unlock()

	s, ok := f.synths[synth]
	if !ok {
		return int32(capi.ResultModelNotFoundError)
	}
	i := slices.Index(s.loaded, uuid.UUID(*id))
	if i < 0 {
		return int32(capi.ResultModelNotFoundError)
	}
	s.loaded = slices.Delete(s.loaded, i, i+1)
	return int32(capi.ResultOK)
}

// synthesizerIsGPUMode implements voicevox_synthesizer_is_gpu_mode.
func (f *FakeCore) synthesizerIsGPUMode(synth uintptr) bool {
	f.enter("voicevox_synthesizer_is_gpu_mode")
	defer f.mu.Unlock()

	s, ok := f.synths[synth]
	return ok && s.opts.AccelerationMode == capi.AccelerationGPU
}

// synthesizerIsLoadedVoiceModel implements voicevox_synthesizer_is_loaded_voice_model.
func (f *FakeCore) synthesizerIsLoadedVoiceModel(synth uintptr, id *[16]byte) bool {
	f.enter("voicevox_synthesizer_is_loaded_voice_model")
	defer f.mu.Unlock()

	s, ok := f.synths[synth]
	return ok && slices.Contains(s.loaded, uuid.UUID(*id))
}

// synthesizerMetasJSON implements voicevox_synthesizer_create_metas_json.
func (f *FakeCore) synthesizerMetasJSON(synth uintptr) *byte {
	f.enter("voicevox_synthesizer_create_metas_json")
	defer f.mu.Unlock()

	s, ok := f.synths[synth]
	if !ok {
		f.fault("create_metas_json on unknown synthesizer %#x", synth)
		return nil
	}
	metas := []map[string]any{}
	for _, id := range s.loaded {
		metas = append(metas, f.modelMetas(&fakeModel{id: id})...)
	}
	return f.ownedJSON(metas)
}

// synthesizerCreateAudioQuery implements voicevox_synthesizer_create_audio_query.
func (f *FakeCore) synthesizerCreateAudioQuery(synth uintptr, text string, styleID uint32, out **byte) int32 {
	f.enter("voicevox_synthesizer_create_audio_query")
	defer f.mu.Unlock()

	s, ok := f.synths[synth]
	if !ok || len(s.loaded) == 0 || capi.StyleID(styleID) != FakeStyleID {
		return int32(capi.ResultStyleNotFoundError)
	}
	if !utf8.ValidString(text) {
		return int32(capi.ResultInvalidUTF8InputError)
	}

	// Only whole-text matches are looked up; the highest priority wins.
	kana := fakeUnknownKana
	var best *fakeWord
	for _, w := range s.ojt.words {
		if w.Surface == text && (best == nil || w.Priority > best.Priority) {
			best = &w
		}
	}
	if best != nil {
		kana = best.Pronunciation + "'"
	}

	// kana carries the result the scenarios assert on.
	*out = f.ownedJSON(map[string]any{
		"accent_phrases":     []any{},
		"speedScale":         1.0,
		"pitchScale":         0.0,
		"intonationScale":    1.0,
		"volumeScale":        1.0,
		"prePhonemeLength":   0.1,
		"postPhonemeLength":  0.1,
		"outputSamplingRate": 24000,
		"outputStereo":       false,
		"kana":               kana,
	})
	return int32(capi.ResultOK)
}

// jsonFree implements voicevox_json_free.
func (f *FakeCore) jsonFree(p *byte) {
	f.enter("voicevox_json_free")
	defer f.mu.Unlock()

	if _, ok := f.pinned[p]; !ok {
		f.fault("json_free of pointer %p not allocated by the core", p)
		return
	}
	delete(f.pinned, p)
}

// userDictNew implements voicevox_user_dict_new.
func (f *FakeCore) userDictNew() uintptr {
	f.enter("voicevox_user_dict_new")
	defer f.mu.Unlock()

	h := f.handles.Next()
	f.dicts[h] = &fakeDict{words: map[uuid.UUID]fakeWord{}}
	return h
}

// validateWord accepts the words the core accepts. The accent type may not
// exceed the mora count of the pronunciation.
func validateWord(c *capi.UserDictWordC) (fakeWord, bool) {
	w := wordFromC(c)
	name, ok := fakeWordTypes[w.WordType]
	if !ok || w.Surface == "" || w.Priority > 10 || !isKatakana(w.Pronunciation) {
		return fakeWord{}, false
	}
	if int(w.AccentType) > utf8.RuneCountInString(w.Pronunciation) {
		return fakeWord{}, false
	}
	return fakeWord{
		Surface:       w.Surface,
		Pronunciation: w.Pronunciation,
		AccentType:    uint64(w.AccentType),
		WordType:      name,
		Priority:      w.Priority,
	}, true
}

func isKatakana(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < 0x30A1 || r > 0x30FC {
			return false
		}
	}
	return true
}

// userDictAddWord implements voicevox_user_dict_add_word.
func (f *FakeCore) userDictAddWord(dict uintptr, word *capi.UserDictWordC, outUUID *[16]byte) int32 {
	f.enter("voicevox_user_dict_add_word")
	defer f.mu.Unlock()

	d, ok := f.dicts[dict]
	if !ok {
		f.fault("add_word on unknown dict %#x", dict)
		return int32(capi.ResultInvalidUserDictWordError)
	}
	w, ok := validateWord(word)
	if !ok {
		return int32(capi.ResultInvalidUserDictWordError)
	}
	id := f.uuids.Generate()
	d.words[id] = w
	*outUUID = id
	return int32(capi.ResultOK)
}

// userDictUpdateWord implements voicevox_user_dict_update_word.
func (f *FakeCore) userDictUpdateWord(dict uintptr, wordUUID *[16]byte, word *capi.UserDictWordC) int32 {
	f.enter("voicevox_user_dict_update_word")
	defer f.mu.Unlock()

	d, ok := f.dicts[dict]
	if !ok {
		return int32(capi.ResultUserDictWordNotFoundError)
	}
	id := uuid.UUID(*wordUUID)
	if _, ok := d.words[id]; !ok {
		return int32(capi.ResultUserDictWordNotFoundError)
	}
	w, ok := validateWord(word)
	if !ok {
		return int32(capi.ResultInvalidUserDictWordError)
	}
	d.words[id] = w
	return int32(capi.ResultOK)
}

// userDictRemoveWord implements voicevox_user_dict_remove_word.
func (f *FakeCore) userDictRemoveWord(dict uintptr, wordUUID *[16]byte) int32 {
	f.enter("voicevox_user_dict_remove_word")
	defer f.mu.Unlock()

	d, ok := f.dicts[dict]
	if !ok {
		return int32(capi.ResultUserDictWordNotFoundError)
	}
	id := uuid.UUID(*wordUUID)
	if _, ok := d.words[id]; !ok {
		return int32(capi.ResultUserDictWordNotFoundError)
	}
	delete(d.words, id)
	return int32(capi.ResultOK)
}

// userDictToJSON implements voicevox_user_dict_to_json.
func (f *FakeCore) userDictToJSON(dict uintptr, out **byte) int32 {
	f.enter("voicevox_user_dict_to_json")
	defer f.mu.Unlock()

	d, ok := f.dicts[dict]
	if !ok {
		return int32(capi.ResultSaveUserDictError)
	}
	*out = f.ownedJSON(d.words)
	return int32(capi.ResultOK)
}

// userDictImport implements voicevox_user_dict_import.
func (f *FakeCore) userDictImport(dict, other uintptr) int32 {
	f.enter("voicevox_user_dict_import")
	defer f.mu.Unlock()

	d, ok := f.dicts[dict]
	o, ook := f.dicts[other]
	if !ok || !ook {
		return int32(capi.ResultLoadUserDictError)
	}
	for id, w := range o.words {
		d.words[id] = w
	}
	return int32(capi.ResultOK)
}

// userDictLoad implements voicevox_user_dict_load.
func (f *FakeCore) userDictLoad(dict uintptr, path string) int32 {
	f.enter("voicevox_user_dict_load")
	defer f.mu.Unlock()

	d, ok := f.dicts[dict]
	if !ok {
		return int32(capi.ResultLoadUserDictError)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return int32(capi.ResultLoadUserDictError)
	}
	var words map[uuid.UUID]fakeWord
	if err := json.Unmarshal(data, &words); err != nil {
		return int32(capi.ResultLoadUserDictError)
	}
	// Loading merges; existing words with the same UUID are replaced.
	for id, w := range words {
		d.words[id] = w
	}
	return int32(capi.ResultOK)
}

// userDictSave implements voicevox_user_dict_save.
func (f *FakeCore) userDictSave(dict uintptr, path string) int32 {
	f.enter("voicevox_user_dict_save")
	defer f.mu.Unlock()

	d, ok := f.dicts[dict]
	if !ok {
		return int32(capi.ResultSaveUserDictError)
	}
	data, err := json.Marshal(d.words)
	if err != nil {
		return int32(capi.ResultSaveUserDictError)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return int32(capi.ResultSaveUserDictError)
	}
	return int32(capi.ResultOK)
}

// userDictDelete implements voicevox_user_dict_delete.
func (f *FakeCore) userDictDelete(dict uintptr) {
	f.enter("voicevox_user_dict_delete")
	defer f.mu.Unlock()

	if _, ok := f.dicts[dict]; !ok {
		f.release("user_dict", dict)
		return
	}
	delete(f.dicts, dict)
	f.freed[dict] = "user_dict"
}
