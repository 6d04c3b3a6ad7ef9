package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

var (
	// ErrLibraryNotFound is returned when the artifact path does not exist.
	ErrLibraryNotFound = errors.New("loader: library not found")

	// ErrLibraryClosed is returned by Lookup after Close.
	ErrLibraryClosed = errors.New("loader: library is closed")

	// ErrSymbolNotFound is returned when an export cannot be resolved.
	ErrSymbolNotFound = errors.New("loader: symbol not found")
)

// Library is a dynamically loaded shared object.
type Library struct {
	mu     sync.RWMutex
	path   string
	handle sysHandle
	closed bool
}

// Open loads the shared library at path.
//
// The path is made absolute before loading so that the dynamic linker never
// falls back to its search path for a relative name.
func Open(path string) (*Library, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("loader: resolve path %q: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrLibraryNotFound, abs)
		}
		return nil, fmt.Errorf("loader: stat %s: %w", abs, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrLibraryNotFound, abs)
	}

	handle, err := sysOpen(abs)
	if err != nil {
		return nil, fmt.Errorf("loader: open %s: %w", abs, err)
	}
	return &Library{path: abs, handle: handle}, nil
}

// Path returns the absolute path the library was loaded from.
func (l *Library) Path() string {
	return l.path
}

// Lookup resolves the address of an exported symbol.
func (l *Library) Lookup(name string) (uintptr, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return 0, ErrLibraryClosed
	}

	addr, err := sysLookup(l.handle, name)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrSymbolNotFound, name, err)
	}
	if addr == 0 {
		return 0, fmt.Errorf("%w: %s resolved to NULL", ErrSymbolNotFound, name)
	}
	return addr, nil
}

// Closed reports whether Close has been called.
func (l *Library) Closed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.closed
}

// Close unloads the library. Only the first call reaches the OS.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	if err := sysClose(l.handle); err != nil {
		return fmt.Errorf("loader: close %s: %w", l.path, err)
	}
	return nil
}
