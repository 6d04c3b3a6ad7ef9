package capi

import (
	"fmt"
	"runtime"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/vvharness/internal/lifecycle"
)

// ResultCode is VoicevoxResultCode.
type ResultCode int32

const (
	ResultOK                        ResultCode = 0
	ResultNotLoadedOpenjtalkDict    ResultCode = 1
	ResultGetSupportedDevicesError  ResultCode = 3
	ResultGPUSupportError           ResultCode = 4
	ResultInitInferenceRuntimeError ResultCode = 29
	ResultStyleNotFoundError        ResultCode = 6
	ResultModelNotFoundError        ResultCode = 7
	ResultRunModelError             ResultCode = 8
	ResultAnalyzeTextError          ResultCode = 11
	ResultInvalidUTF8InputError     ResultCode = 12
	ResultParseKanaError            ResultCode = 13
	ResultInvalidAudioQueryError    ResultCode = 14
	ResultInvalidAccentPhraseError  ResultCode = 15
	ResultOpenZipFileError          ResultCode = 16
	ResultReadZipEntryError         ResultCode = 17
	ResultInvalidModelHeaderError   ResultCode = 28
	ResultModelAlreadyLoadedError   ResultCode = 18
	ResultStyleAlreadyLoadedError   ResultCode = 26
	ResultInvalidModelDataError     ResultCode = 27
	ResultLoadUserDictError         ResultCode = 20
	ResultSaveUserDictError         ResultCode = 21
	ResultUserDictWordNotFoundError ResultCode = 22
	ResultUseUserDictError          ResultCode = 23
	ResultInvalidUserDictWordError  ResultCode = 24
	ResultInvalidUUIDError          ResultCode = 25
	ResultInvalidMoraError          ResultCode = 30
)

var resultCodeNames = map[ResultCode]string{
	ResultOK:                        "VOICEVOX_RESULT_OK",
	ResultNotLoadedOpenjtalkDict:    "VOICEVOX_RESULT_NOT_LOADED_OPENJTALK_DICT_ERROR",
	ResultGetSupportedDevicesError:  "VOICEVOX_RESULT_GET_SUPPORTED_DEVICES_ERROR",
	ResultGPUSupportError:           "VOICEVOX_RESULT_GPU_SUPPORT_ERROR",
	ResultInitInferenceRuntimeError: "VOICEVOX_RESULT_INIT_INFERENCE_RUNTIME_ERROR",
	ResultStyleNotFoundError:        "VOICEVOX_RESULT_STYLE_NOT_FOUND_ERROR",
	ResultModelNotFoundError:        "VOICEVOX_RESULT_MODEL_NOT_FOUND_ERROR",
	ResultRunModelError:             "VOICEVOX_RESULT_RUN_MODEL_ERROR",
	ResultAnalyzeTextError:          "VOICEVOX_RESULT_ANALYZE_TEXT_ERROR",
	ResultInvalidUTF8InputError:     "VOICEVOX_RESULT_INVALID_UTF8_INPUT_ERROR",
	ResultParseKanaError:            "VOICEVOX_RESULT_PARSE_KANA_ERROR",
	ResultInvalidAudioQueryError:    "VOICEVOX_RESULT_INVALID_AUDIO_QUERY_ERROR",
	ResultInvalidAccentPhraseError:  "VOICEVOX_RESULT_INVALID_ACCENT_PHRASE_ERROR",
	ResultOpenZipFileError:          "VOICEVOX_RESULT_OPEN_ZIP_FILE_ERROR",
	ResultReadZipEntryError:         "VOICEVOX_RESULT_READ_ZIP_ENTRY_ERROR",
	ResultInvalidModelHeaderError:   "VOICEVOX_RESULT_INVALID_MODEL_HEADER_ERROR",
	ResultModelAlreadyLoadedError:   "VOICEVOX_RESULT_MODEL_ALREADY_LOADED_ERROR",
	ResultStyleAlreadyLoadedError:   "VOICEVOX_RESULT_STYLE_ALREADY_LOADED_ERROR",
	ResultInvalidModelDataError:     "VOICEVOX_RESULT_INVALID_MODEL_DATA_ERROR",
	ResultLoadUserDictError:         "VOICEVOX_RESULT_LOAD_USER_DICT_ERROR",
	ResultSaveUserDictError:         "VOICEVOX_RESULT_SAVE_USER_DICT_ERROR",
	ResultUserDictWordNotFoundError: "VOICEVOX_RESULT_USER_DICT_WORD_NOT_FOUND_ERROR",
	ResultUseUserDictError:          "VOICEVOX_RESULT_USE_USER_DICT_ERROR",
	ResultInvalidUserDictWordError:  "VOICEVOX_RESULT_INVALID_USER_DICT_WORD_ERROR",
	ResultInvalidUUIDError:          "VOICEVOX_RESULT_INVALID_UUID_ERROR",
	ResultInvalidMoraError:          "VOICEVOX_RESULT_INVALID_MORA_ERROR",
}

// Known reports whether c is a documented result code.
func (c ResultCode) Known() bool {
	_, ok := resultCodeNames[c]
	return ok
}

// String returns the C enumerator name.
func (c ResultCode) String() string {
	if name, ok := resultCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("VoicevoxResultCode(%d)", int32(c))
}

// ResultCodes returns every documented code in ascending order.
func ResultCodes() []ResultCode {
	codes := make([]ResultCode, 0, len(resultCodeNames))
	for c := range resultCodeNames {
		codes = append(codes, c)
	}
	slices.Sort(codes)
	return codes
}

// AccelerationMode is VoicevoxAccelerationMode.
type AccelerationMode int32

const (
	AccelerationAuto AccelerationMode = 0
	AccelerationCPU  AccelerationMode = 1
	AccelerationGPU  AccelerationMode = 2
)

// ParseAccelerationMode accepts "auto", "cpu" or "gpu".
func ParseAccelerationMode(s string) (AccelerationMode, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return AccelerationAuto, nil
	case "cpu":
		return AccelerationCPU, nil
	case "gpu":
		return AccelerationGPU, nil
	default:
		return 0, fmt.Errorf("invalid acceleration mode %q: must be auto, cpu, or gpu", s)
	}
}

// String returns the name ParseAccelerationMode accepts.
func (m AccelerationMode) String() string {
	switch m {
	case AccelerationAuto:
		return "auto"
	case AccelerationCPU:
		return "cpu"
	case AccelerationGPU:
		return "gpu"
	default:
		return fmt.Sprintf("AccelerationMode(%d)", int32(m))
	}
}

// UserDictWordType is VoicevoxUserDictWordType.
type UserDictWordType int32

const (
	WordTypeProperNoun UserDictWordType = 0
	WordTypeCommonNoun UserDictWordType = 1
	WordTypeVerb       UserDictWordType = 2
	WordTypeAdjective  UserDictWordType = 3
	WordTypeSuffix     UserDictWordType = 4
)

// StyleID is VoicevoxStyleId.
type StyleID uint32

// Opaque handles. The zero value is the NULL handle.
type (
	UserDict       uintptr
	VoiceModelFile uintptr
	Onnxruntime    uintptr
	OpenJtalkRc    uintptr
	Synthesizer    uintptr
)

// Ledger kinds for each releasable handle type.
const (
	KindUserDict       lifecycle.Kind = "user_dict"
	KindVoiceModelFile lifecycle.Kind = "voice_model_file"
	KindOpenJtalkRc    lifecycle.Kind = "open_jtalk_rc"
	KindSynthesizer    lifecycle.Kind = "synthesizer"
)

// VoiceModelID is VoicevoxVoiceModelId (a UUID).
type VoiceModelID [16]byte

// String formats the id in canonical UUID form.
func (id VoiceModelID) String() string {
	return uuid.UUID(id).String()
}

// InitializeOptions is VoicevoxInitializeOptions.
type InitializeOptions struct {
	AccelerationMode AccelerationMode

	// CPUNumThreads of 0 lets the core pick.
	CPUNumThreads uint16
}

// Pack returns the register image of the struct: acceleration_mode in the
// low 32 bits, cpu_num_threads in the next 16.
func (o InitializeOptions) Pack() uint64 {
	return uint64(uint32(o.AccelerationMode)) | uint64(o.CPUNumThreads)<<32
}

// UnpackInitializeOptions is the inverse of InitializeOptions.Pack.
func UnpackInitializeOptions(v uint64) InitializeOptions {
	return InitializeOptions{
		AccelerationMode: AccelerationMode(int32(uint32(v))),
		CPUNumThreads:    uint16(v >> 32),
	}
}

// LoadOnnxruntimeOptions is VoicevoxLoadOnnxruntimeOptions. A non-empty
// Filename replaces the library's default filename pointer.
type LoadOnnxruntimeOptions struct {
	Filename string
}

// UserDictWord is the Go view of VoicevoxUserDictWord.
type UserDictWord struct {
	Surface string

	// Pronunciation is katakana.
	Pronunciation string

	// AccentType is the mora index of the accent nucleus; size_t in C.
	AccentType uintptr
	WordType   UserDictWordType

	// Priority ranges 0 to 10.
	Priority uint32
}

// NewUserDictWord mirrors voicevox_user_dict_word_make: accent type 0,
// common noun, priority 5.
func NewUserDictWord(surface, pronunciation string) UserDictWord {
	return UserDictWord{
		Surface:       surface,
		Pronunciation: pronunciation,
		AccentType:    0,
		WordType:      WordTypeCommonNoun,
		Priority:      5,
	}
}

// UserDictWordC is the C layout of VoicevoxUserDictWord.
type UserDictWordC struct {
	Surface       *byte
	Pronunciation *byte
	AccentType    uintptr
	WordType      int32
	Priority      uint32
}

// cWord builds the C struct. Every buffer is pinned until p is unpinned.
func (w UserDictWord) cWord(p *runtime.Pinner) (*UserDictWordC, error) {
	surface, err := cBytes("surface", w.Surface)
	if err != nil {
		return nil, err
	}
	pronunciation, err := cBytes("pronunciation", w.Pronunciation)
	if err != nil {
		return nil, err
	}
	p.Pin(&surface[0])
	p.Pin(&pronunciation[0])

	c := &UserDictWordC{
		Surface:       &surface[0],
		Pronunciation: &pronunciation[0],
		AccentType:    w.AccentType,
		WordType:      int32(w.WordType),
		Priority:      w.Priority,
	}
	p.Pin(c)
	return c, nil
}

// cBytes returns s as a NUL-terminated buffer.
func cBytes(field, s string) ([]byte, error) {
	if err := checkCString(field, s); err != nil {
		return nil, err
	}
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	return buf, nil
}

// checkCString rejects strings C would silently truncate.
func checkCString(field, s string) error {
	if strings.IndexByte(s, 0) >= 0 {
		return fmt.Errorf("%w: %s contains NUL", ErrInvalidArgument, field)
	}
	return nil
}
