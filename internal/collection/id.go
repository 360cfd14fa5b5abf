package collection

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/xid"
)

// IDGenerator generates document identifiers for inserts without an _id.
// Implemented by UUIDGenerator (default), XIDGenerator and FixedGenerator
// (tests).
type IDGenerator interface {
	Generate() string
}

// Identifier strategies accepted by GeneratorFor.
const (
	IDStrategyUUID = "uuid"
	IDStrategyXID  = "xid"
)

// GeneratorFor returns the generator for a configured strategy name.
// An empty name selects the UUID generator.
func GeneratorFor(strategy string) (IDGenerator, error) {
	switch strategy {
	case "", IDStrategyUUID:
		return UUIDGenerator{}, nil
	case IDStrategyXID:
		return XIDGenerator{}, nil
	default:
		return nil, fmt.Errorf("unknown id strategy %q (want %q or %q)", strategy, IDStrategyUUID, IDStrategyXID)
	}
}

// UUIDGenerator generates random (version 4) UUIDs.
//
// Format: "550e8400-e29b-41d4-a716-446655440000" (36 characters)
//
// Uniqueness is probabilistic. The table's primary key is the backstop: a
// collision surfaces as a duplicate-key insert error.
//
// Thread-safety: UUIDGenerator is stateless and safe for concurrent use.
type UUIDGenerator struct{}

// Generate creates a new random UUID and returns it as a hyphenated string.
//
// Panics if the system randomness source fails (should never happen in
// practice).
func (UUIDGenerator) Generate() string {
	return uuid.Must(uuid.NewRandom()).String()
}

// XIDGenerator generates 20-character, time-sortable xid identifiers.
//
// Thread-safety: XIDGenerator is stateless and safe for concurrent use.
type XIDGenerator struct{}

// Generate creates a new xid, e.g. "9m4e2mr0ui3e8a215n4g".
func (XIDGenerator) Generate() string {
	return xid.New().String()
}

// FixedGenerator returns predetermined ids for testing.
//
// This enables deterministic test execution and golden trace comparison.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
//
// Example:
//
//	gen := NewFixedGenerator("doc-1", "doc-2")
//	gen.Generate() // "doc-1"
//	gen.Generate() // "doc-2"
//	gen.Generate() // panic: all ids exhausted
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined id.
//
// Panics if all ids have been consumed, to catch a test that inserts more
// documents than it planned for.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
