package doc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// IDField is the name of the identifier field of every document.
const IDField = "_id"

// M is an unordered document. Stored and returned documents use this shape.
type M map[string]any

// D is an ordered document. Use it where key order matters, e.g. sort specs.
type D []E

// E is a single entry of an ordered document.
type E struct {
	Key   string
	Value any
}

// Map converts an ordered document to an unordered one.
// Later duplicate keys win.
func (d D) Map() M {
	m := make(M, len(d))
	for _, e := range d {
		m[e.Key] = e.Value
	}
	return m
}

// MarshalJSON encodes D as a JSON object preserving entry order.
func (d D) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(e.Key)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", e.Key, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := marshalValue(e.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", e.Key, err)
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Entries returns the entries of a spec document in iteration order.
//
// D is returned as-is. M and map[string]any are returned sorted by key.
// A nil value yields no entries. The second return value is false when v is
// not a document at all.
func Entries(v any) ([]E, bool) {
	switch val := v.(type) {
	case nil:
		return nil, true
	case D:
		return val, true
	case M:
		return sortedEntries(val), true
	case map[string]any:
		return sortedEntries(val), true
	default:
		return nil, false
	}
}

// IsDocument reports whether v is one of the document shapes.
func IsDocument(v any) bool {
	switch v.(type) {
	case D, M, map[string]any:
		return true
	default:
		return false
	}
}

// List returns the elements of a list value. The second return value is false
// when v is not a list.
func List(v any) ([]any, bool) {
	switch val := v.(type) {
	case []any:
		return val, true
	case []M:
		out := make([]any, len(val))
		for i, m := range val {
			out[i] = m
		}
		return out, true
	case []D:
		out := make([]any, len(val))
		for i, d := range val {
			out[i] = d
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(val))
		for i, m := range val {
			out[i] = m
		}
		return out, true
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, true
	case []int:
		out := make([]any, len(val))
		for i, n := range val {
			out[i] = n
		}
		return out, true
	case []int64:
		out := make([]any, len(val))
		for i, n := range val {
			out[i] = n
		}
		return out, true
	case []float64:
		out := make([]any, len(val))
		for i, f := range val {
			out[i] = f
		}
		return out, true
	default:
		return nil, false
	}
}

// Clone returns a shallow copy of m. Nested values are shared.
func Clone(m M) M {
	out := make(M, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// SetPath sets value at a dotted field path inside m, creating intermediate
// documents as needed. An intermediate value that is not a document is
// replaced.
func SetPath(m M, path string, value any) {
	segments := splitPath(path)
	cur := m
	for _, seg := range segments[:len(segments)-1] {
		next, ok := cur[seg].(M)
		if !ok {
			if raw, isMap := cur[seg].(map[string]any); isMap {
				next = M(raw)
			} else {
				next = M{}
			}
			cur[seg] = next
		}
		cur = next
	}
	cur[segments[len(segments)-1]] = value
}

func sortedEntries(m map[string]any) []E {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]E, len(keys))
	for i, k := range keys {
		entries[i] = E{Key: k, Value: m[k]}
	}
	return entries
}
