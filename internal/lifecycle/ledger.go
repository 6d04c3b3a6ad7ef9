package lifecycle

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Kind names a class of native resource (e.g. "synthesizer").
type Kind string

// Op is the ledger operation recorded for an event.
type Op string

const (
	OpAcquire Op = "acquire"
	OpRelease Op = "release"
)

var (
	// ErrNullHandle is returned when a constructor hands back a NULL handle.
	ErrNullHandle = errors.New("lifecycle: null handle")

	// ErrAlreadyLive is returned when a handle is acquired while still live.
	ErrAlreadyLive = errors.New("lifecycle: handle acquired twice without release")

	// ErrDoubleRelease is returned when a released handle is released again.
	ErrDoubleRelease = errors.New("lifecycle: handle released twice")

	// ErrUnknownHandle is returned when releasing a handle never acquired.
	ErrUnknownHandle = errors.New("lifecycle: release of unknown handle")

	// ErrLeak matches LeakError.
	ErrLeak = errors.New("lifecycle: handle leaked")
)

// Event is one ledger entry.
type Event struct {
	// Seq is the ledger's logical clock, starting at 1. It orders events
	// without reference to wall time.
	Seq int64 `json:"seq"`

	Op   Op   `json:"op"`
	Kind Kind `json:"kind"`

	// Handle is the opaque native handle value, widened for JSON.
	Handle uint64 `json:"handle"`
}

// LeakError lists handles still live when the ledger was verified.
type LeakError struct {
	Outstanding []Event
}

// Error lists every outstanding handle with the seq it was acquired at.
func (e *LeakError) Error() string {
	parts := make([]string, len(e.Outstanding))
	for i, ev := range e.Outstanding {
		parts[i] = fmt.Sprintf("%s#%x (acquired at seq %d)", ev.Kind, ev.Handle, ev.Seq)
	}
	return fmt.Sprintf("lifecycle: %d handle(s) leaked: %s", len(parts), strings.Join(parts, ", "))
}

// Is matches ErrLeak.
func (e *LeakError) Is(target error) bool {
	return target == ErrLeak
}

// key identifies a handle. The same address may be live under two kinds.
type key struct {
	kind   Kind
	handle uintptr
}

// Ledger records handle acquisition and release.
//
// Thread-safety: all methods are safe for concurrent use.
type Ledger struct {
	mu  sync.Mutex
	seq int64

	// live maps each owned handle to its acquire seq.
	live map[key]int64

	// released remembers handles given back until they are acquired
	// again, to tell a double release from an unknown one.
	released map[key]struct{}

	events []Event
}

// NewLedger creates an empty ledger. The first event gets seq 1.
func NewLedger() *Ledger {
	return &Ledger{
		live:     make(map[key]int64),
		released: make(map[key]struct{}),
	}
}

// Acquire records that handle of the given kind is now owned by the run.
//
// A handle that was released earlier may be acquired again; native
// allocators are free to reuse addresses.
func (l *Ledger) Acquire(kind Kind, handle uintptr) error {
	if handle == 0 {
		return fmt.Errorf("%w: %s", ErrNullHandle, kind)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	k := key{kind: kind, handle: handle}
	if _, ok := l.live[k]; ok {
		return fmt.Errorf("%w: %s#%x", ErrAlreadyLive, kind, handle)
	}
	delete(l.released, k)

	seq := l.next()
	l.live[k] = seq
	l.events = append(l.events, Event{Seq: seq, Op: OpAcquire, Kind: kind, Handle: uint64(handle)})
	return nil
}

// Release records that handle is given back. The caller must not forward the
// release to the native library when Release returns an error.
func (l *Ledger) Release(kind Kind, handle uintptr) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := key{kind: kind, handle: handle}
	if _, ok := l.live[k]; !ok {
		if _, gone := l.released[k]; gone {
			return fmt.Errorf("%w: %s#%x", ErrDoubleRelease, kind, handle)
		}
		return fmt.Errorf("%w: %s#%x", ErrUnknownHandle, kind, handle)
	}
	delete(l.live, k)
	l.released[k] = struct{}{}

	l.events = append(l.events, Event{Seq: l.next(), Op: OpRelease, Kind: kind, Handle: uint64(handle)})
	return nil
}

// Live reports whether handle is currently held.
func (l *Ledger) Live(kind Kind, handle uintptr) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.live[key{kind: kind, handle: handle}]
	return ok
}

// Outstanding returns the acquire events of handles still live, by seq.
func (l *Ledger) Outstanding() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Event, 0, len(l.live))
	for k, seq := range l.live {
		out = append(out, Event{Seq: seq, Op: OpAcquire, Kind: k.kind, Handle: uint64(k.handle)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// Verify returns a *LeakError if any handle is still live.
func (l *Ledger) Verify() error {
	if outstanding := l.Outstanding(); len(outstanding) > 0 {
		return &LeakError{Outstanding: outstanding}
	}
	return nil
}

// Events returns a copy of the event log in seq order.
func (l *Ledger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	events := make([]Event, len(l.events))
	copy(events, l.events)
	return events
}

// Counts returns the number of acquire and release events recorded.
func (l *Ledger) Counts() (acquired, released int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ev := range l.events {
		switch ev.Op {
		case OpAcquire:
			acquired++
		case OpRelease:
			released++
		}
	}
	return acquired, released
}

// next advances the logical clock. Callers hold mu.
func (l *Ledger) next() int64 {
	l.seq++
	return l.seq
}
