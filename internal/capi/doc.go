// Package capi is the typed native call surface of the VOICEVOX CORE C API.
//
// Bind resolves every entry point the harness uses and materializes it as a
// Go function through purego, so the library is driven exactly as an
// external C consumer would drive it: no cgo, no headers, just the exported
// symbols of the shipped artifact.
//
// Library wraps the raw function table. Each wrapper marshals its inputs into
// the C representation, calls the symbol, turns a non-OK VoicevoxResultCode
// into a *ResultError, and copies any owned output back into Go memory
// (freeing the native buffer). Handles are opaque tokens: the harness never
// dereferences them, it only passes them back to the library.
//
// Every constructor and destructor goes through a lifecycle.Ledger, which
// refuses to forward a double release and reports leaked handles.
//
// # Struct passing
//
// Two API structs are passed or returned by value. They are small enough to
// travel in a single integer register on amd64 and arm64 (SysV and Windows).
// VoicevoxInitializeOptions {int32 acceleration_mode; uint16 cpu_num_threads}
// is bound as a uint64 and packed/unpacked on the Go side.
// VoicevoxLoadOnnxruntimeOptions {const char *filename} has the layout of its
// only field and is bound as a *byte.
//
// voicevox_user_dict_word_make returns a 32-byte struct through a hidden
// result pointer and is not bound; NewUserDictWord applies the same defaults.
package capi
