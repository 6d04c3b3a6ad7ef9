package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/roach88/vvharness/internal/config"
	"github.com/roach88/vvharness/internal/harness"
	"github.com/roach88/vvharness/internal/snapshot"
	"github.com/roach88/vvharness/internal/store"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Every scenario passed
	ExitFailure      = 1 // One or more scenarios failed or were skipped
	ExitCommandError = 2 // Command error (bad flags, missing library, unreadable files, etc.)
)

// Error codes carried in JSON error responses.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeConfig      = "E002" // Invalid configuration
	ErrCodeNotFound    = "E003" // Path or snapshot not found
	ErrCodeLoadFailed  = "E004" // Suite, rules or snapshots failed to load
	ErrCodeUnknownTag  = "E005" // Scenario tag not registered
	ErrCodeStoreFailed = "E006" // Results database error
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
// An empty Message with a nil Err prints nothing.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

// Error joins the message and the underlying error.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil and ExitCommandError if the error is not an
// ExitError (cobra flag and argument errors).
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// errorCode picks the JSON error code for err, or fallback when nothing more
// specific applies.
func errorCode(err error, fallback string) string {
	var unknown *harness.UnknownTagError
	switch {
	case errors.As(err, &unknown):
		return ErrCodeUnknownTag
	case errors.Is(err, config.ErrInvalid):
		return ErrCodeConfig
	case errors.Is(err, fs.ErrNotExist),
		errors.Is(err, store.ErrRunNotFound),
		errors.Is(err, snapshot.ErrNotFound):
		return ErrCodeNotFound
	}
	return fallback
}

// reportError writes a JSON error response when out is in json mode and
// returns the ExitError the command exits with. In text mode main prints the
// message.
func reportError(out *OutputFormatter, exit int, code, message string, err error) *ExitError {
	if out.Format == "json" {
		var details any
		if err != nil {
			details = err.Error()
		}
		_ = out.Error(errorCode(err, code), message, details)
	}
	return WrapExitError(exit, message, err)
}

// commandError is reportError with ExitCommandError.
func commandError(out *OutputFormatter, code, message string, err error) error {
	return reportError(out, ExitCommandError, code, message, err)
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok", "fail" or "error"
	Data   any       `json:"data,omitempty"`  // payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E002", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	return f.Result("ok", data)
}

// Result outputs data under an explicit status. Text output ignores status.
func (f *OutputFormatter) Result(status string, data any) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetEscapeHTML(false)
		return enc.Encode(CLIResponse{Status: status, Data: data})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// Table starts a table that renders to the formatter's writer.
func (f *OutputFormatter) Table(header ...any) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(f.Writer)
	t.SetStyle(table.StyleRounded)
	t.Style().Color.Header = text.Colors{text.FgHiCyan}
	t.AppendHeader(header)
	return t
}

// statusText colors a verdict status for terminals.
func statusText(status string) string {
	switch status {
	case "pass":
		return text.FgGreen.Sprint("PASS")
	case "skip":
		return text.FgYellow.Sprint("SKIP")
	default:
		return text.FgRed.Sprint("FAIL")
	}
}
