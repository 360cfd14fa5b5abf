package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates deterministic document ids: "<prefix>-1",
// "<prefix>-2", ...
//
// Unlike collection.FixedGenerator, which returns a fixed list and panics when
// exhausted, SequentialIDs never runs out and can be reset for test reuse.
// The same scenario run with a fresh SequentialIDs produces byte-identical
// traces.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	seq    int64
}

// NewSequentialIDs creates a generator starting at 1.
//
// If prefix is empty, "doc" is used.
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "doc"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next id.
//
// Implements collection.IDGenerator.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%d", g.prefix, g.seq)
}

// Issued returns how many ids have been generated since the last Reset.
func (g *SequentialIDs) Issued() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

// Reset restarts the sequence. After Reset(), Generate() returns
// "<prefix>-1" again.
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
