package lifecycle

import (
	"errors"
	"fmt"
	"sync"
)

// ErrReleasePanicked wraps the value recovered from a release that panicked.
var ErrReleasePanicked = errors.New("lifecycle: release panicked")

type deferred struct {
	name    string
	release func() error
}

// Scope collects release functions and runs them last-in first-out.
//
// Register the release of a resource immediately after acquiring it; a
// failure later in the scenario then still releases everything acquired so
// far, dependents first.
type Scope struct {
	mu      sync.Mutex
	entries []deferred
	closed  bool
}

// Defer registers release to run when the scope closes.
// Registering on a closed scope is a programming error and panics.
func (s *Scope) Defer(name string, release func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		panic(fmt.Sprintf("lifecycle: Defer(%q) on closed scope", name))
	}
	s.entries = append(s.entries, deferred{name: name, release: release})
}

// Len returns the number of pending releases.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close runs every pending release in reverse order. Every release runs even
// if an earlier one fails or panics; the failures are joined. Only the first call does
// any work.
func (s *Scope) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	entries := s.entries
	s.entries = nil
	s.mu.Unlock()

	var errs []error
	for i := len(entries) - 1; i >= 0; i-- {
		if err := entries[i].run(); err != nil {
			errs = append(errs, fmt.Errorf("release %s: %w", entries[i].name, err))
		}
	}
	return errors.Join(errs...)
}

// run calls release, turning a panic into an error so later entries still
// run.
func (e deferred) run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrReleasePanicked, r)
		}
	}()
	return e.release()
}
