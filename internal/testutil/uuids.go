package testutil

import (
	"encoding/binary"
	"sync"

	"github.com/google/uuid"
)

// SequentialUUIDs generates predictable UUIDs for word registrations.
//
// Real cores hand out random v4 UUIDs; golden files of fake runs need the
// same UUIDs every time. The generated values keep the v4 version and
// variant bits so they parse like the real ones.
//
// Thread-safety: Generate is safe for concurrent use.
type SequentialUUIDs struct {
	mu     sync.Mutex
	prefix uint64
	n      uint64
}

// NewSequentialUUIDs creates a generator whose UUIDs share the given high
// 64 bits. A zero prefix uses 0x0000000000004000.
func NewSequentialUUIDs(prefix uint64) *SequentialUUIDs {
	if prefix == 0 {
		prefix = 0x4000
	}
	return &SequentialUUIDs{prefix: prefix}
}

// Generate returns the next UUID.
func (g *SequentialUUIDs) Generate() uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++

	var id uuid.UUID
	binary.BigEndian.PutUint64(id[:8], g.prefix)
	binary.BigEndian.PutUint64(id[8:], g.n)
	id[6] = (id[6] & 0x0f) | 0x40
	id[8] = (id[8] & 0x3f) | 0x80
	return id
}
