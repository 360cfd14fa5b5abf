package collection

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDGenerator_Format(t *testing.T) {
	gen := UUIDGenerator{}
	id := gen.Generate()

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), parsed.Version())
	assert.Len(t, id, 36)
}

func TestUUIDGenerator_Unique(t *testing.T) {
	gen := UUIDGenerator{}
	seen := make(map[string]bool)

	for i := 0; i < 1000; i++ {
		id := gen.Generate()
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestXIDGenerator_Format(t *testing.T) {
	id := XIDGenerator{}.Generate()

	_, err := xid.FromString(id)
	require.NoError(t, err)
	assert.Len(t, id, 20)
}

func TestFixedGenerator(t *testing.T) {
	gen := NewFixedGenerator("a", "b")

	assert.Equal(t, "a", gen.Generate())
	assert.Equal(t, "b", gen.Generate())
	assert.PanicsWithValue(t, "FixedGenerator: all ids exhausted", func() { gen.Generate() })
}

func TestFixedGenerator_ConcurrentUse(t *testing.T) {
	gen := NewFixedGenerator("1", "2", "3", "4", "5", "6", "7", "8")

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		got = make(map[string]bool)
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := gen.Generate()
			mu.Lock()
			got[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, got, 8)
}

func TestGeneratorFor(t *testing.T) {
	tests := []struct {
		strategy string
		want     IDGenerator
		wantErr  bool
	}{
		{"", UUIDGenerator{}, false},
		{"uuid", UUIDGenerator{}, false},
		{"xid", XIDGenerator{}, false},
		{"snowflake", nil, true},
	}

	for _, tc := range tests {
		t.Run(tc.strategy, func(t *testing.T) {
			got, err := GeneratorFor(tc.strategy)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tc.want, got)
		})
	}
}
