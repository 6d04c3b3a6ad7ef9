// Package capture runs a procedure in an isolated child process and collects
// everything it writes plus its exit status.
//
// Capture works at the process level, not at the Go io.Writer level, because
// the native library writes to file descriptors 1 and 2 directly and buffers
// independently of the Go runtime. Whatever the child wrote before exiting
// (cleanly or not) is collected.
package capture

import (
	"context"
	"errors"
	"fmt"

	execute "github.com/alexellis/go-execute/v2"
	"golang.org/x/text/encoding/unicode"
)

// ExitAbnormal is the exit code reported for a child killed by a signal.
const ExitAbnormal = -1

// ErrSpawn is returned when the child process cannot be started.
var ErrSpawn = errors.New("capture: failed to spawn child process")

// Command describes the child process to run.
type Command struct {
	Path string
	Args []string
	// Env holds KEY=VALUE pairs layered over the parent's environment.
	Env []string
	Dir string
}

// Output is what a child process produced. It is a value: normalization
// returns modified copies and never touches the original.
type Output struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// Success reports whether the child exited with status 0.
func (o Output) Success() bool {
	return o.ExitCode == 0
}

// WithStdout returns a copy of o with stdout replaced.
func (o Output) WithStdout(s string) Output {
	o.Stdout = s
	return o
}

// WithStderr returns a copy of o with stderr replaced.
func (o Output) WithStderr(s string) Output {
	o.Stderr = s
	return o
}

// Run executes cmd and waits for it. A non-zero exit is not an error; it
// is reported in Output.ExitCode. Cancellation of ctx kills the child and
// returns its partial output together with ctx's error.
func Run(ctx context.Context, cmd Command) (Output, error) {
	task := execute.ExecTask{
		Command: cmd.Path,
		Args:    cmd.Args,
		Env:     cmd.Env,
		Cwd:     cmd.Dir,
	}

	res, err := task.Execute(ctx)
	out := Output{
		Stdout:   Decode([]byte(res.Stdout)),
		Stderr:   Decode([]byte(res.Stderr)),
		ExitCode: res.ExitCode,
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		out.ExitCode = ExitAbnormal
		return out, fmt.Errorf("capture: %s: %w", cmd.Path, ctxErr)
	}
	// Execute reports a nonzero exit through ExitCode; err means the child
	// never ran.
	if err != nil {
		return out, fmt.Errorf("%w: %s: %w", ErrSpawn, cmd.Path, err)
	}
	return out, nil
}

// Decode interprets b as UTF-8, replacing invalid sequences with U+FFFD.
// It never fails.
func Decode(b []byte) string {
	s, err := unicode.UTF8.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}
