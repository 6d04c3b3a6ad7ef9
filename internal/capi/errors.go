package capi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/vvharness/internal/loader"
)

var (
	// ErrLibraryNotFound is returned by Open when the artifact does not exist.
	ErrLibraryNotFound = loader.ErrLibraryNotFound

	// ErrLibraryClosed is returned by every call made after Close.
	ErrLibraryClosed = errors.New("capi: library closed")

	// ErrSymbolMissing is matched by *SymbolMissingError.
	ErrSymbolMissing = errors.New("capi: required symbol missing")

	// ErrAbiMismatch means the library answered outside the documented
	// contract (undocumented status, NULL where an object is required,
	// unparsable version).
	ErrAbiMismatch = errors.New("capi: ABI mismatch")

	// ErrInvalidArgument rejects inputs that cannot be represented in C.
	ErrInvalidArgument = errors.New("capi: invalid argument")
)

// SymbolMissingError lists every entry point the library failed to export.
type SymbolMissingError struct {
	// Names are the C symbol names, in table order.
	Names []string

	// Err joins the loader's error for each missing symbol.
	Err error
}

// Error names every missing symbol.
func (e *SymbolMissingError) Error() string {
	return fmt.Sprintf("capi: missing required symbol(s): %s", strings.Join(e.Names, ", "))
}

// Unwrap returns the loader error.
func (e *SymbolMissingError) Unwrap() error { return e.Err }

// Is matches ErrSymbolMissing.
func (e *SymbolMissingError) Is(target error) bool {
	return target == ErrSymbolMissing
}

// ResultError is a non-OK VoicevoxResultCode returned by an API call.
type ResultError struct {
	// Func is the Go wrapper that made the call.
	Func string
	Code ResultCode

	// Message is the core's own text for Code, from
	// voicevox_error_result_to_message.
	Message string
}

// Error formats the call, the symbolic code and the core's message.
func (e *ResultError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s (%d)", e.Func, e.Code, int32(e.Code))
	}
	return fmt.Sprintf("%s: %s (%d): %s", e.Func, e.Code, int32(e.Code), e.Message)
}

// IsResult reports whether err carries the given result code.
func IsResult(err error, code ResultCode) bool {
	var re *ResultError
	return errors.As(err, &re) && re.Code == code
}

// ResultCodeOf extracts the result code, or ResultOK when err is not a
// *ResultError.
func ResultCodeOf(err error) (ResultCode, bool) {
	var re *ResultError
	if errors.As(err, &re) {
		return re.Code, true
	}
	return ResultOK, false
}
