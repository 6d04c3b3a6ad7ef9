package testutil

import "sync"

// HandleSource hands out deterministic, non-NULL, pointer-aligned handle
// values for the fake core.
//
// Two sources fed the same sequence of calls produce identical handles, so
// ledger dumps from fake runs can be compared byte for byte.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type HandleSource struct {
	mu   sync.Mutex
	base uintptr
	seq  uintptr
}

// NewHandleSource creates a source whose first handle is base+0x10.
//
// A zero base defaults to 0x1000.
func NewHandleSource(base uintptr) *HandleSource {
	if base == 0 {
		base = 0x1000
	}
	return &HandleSource{base: base}
}

// Next returns the next handle.
func (s *HandleSource) Next() uintptr {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.base + s.seq*0x10
}

// Issued returns how many handles have been handed out.
func (s *HandleSource) Issued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.seq)
}

// Reset restarts the sequence. After Reset, Next returns base+0x10 again.
func (s *HandleSource) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = 0
}
