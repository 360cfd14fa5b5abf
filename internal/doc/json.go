package doc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Encode serializes a document to JSON text for storage.
// HTML escaping is disabled so stored text matches what callers wrote.
func Encode(m M) (string, error) {
	data, err := marshalValue(m)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(data), nil
}

// MarshalValue serializes a single value to JSON literal text.
// Scalars and composites are handled uniformly: "x" becomes "\"x\"",
// 5 becomes "5", nil becomes "null".
func MarshalValue(v any) (string, error) {
	data, err := marshalValue(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func marshalValue(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// Encoder adds a trailing newline, remove it
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Decode parses stored JSON text into a document.
// Integers decode as int64, other numbers as float64, objects as M.
// The top-level value must be a JSON object.
func Decode(text string) (M, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode document: trailing data after object")
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decode document: expected object, got %T", raw)
	}
	return normalize(obj).(M), nil
}

// DecodeOrdered parses a JSON object preserving key order at every level.
// Objects decode as D, numbers follow the same rules as Decode.
func DecodeOrdered(data []byte) (D, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeOrderedValue(dec)
	if err != nil {
		return nil, fmt.Errorf("decode ordered document: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode ordered document: trailing data after object")
	}

	d, ok := v.(D)
	if !ok {
		return nil, fmt.Errorf("decode ordered document: expected object, got %T", v)
	}
	return d, nil
}

func decodeOrderedValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			d := D{}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("expected object key, got %v", keyTok)
				}
				val, err := decodeOrderedValue(dec)
				if err != nil {
					return nil, fmt.Errorf("key %q: %w", key, err)
				}
				d = append(d, E{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return d, nil
		case '[':
			arr := []any{}
			for dec.More() {
				val, err := decodeOrderedValue(dec)
				if err != nil {
					return nil, fmt.Errorf("array[%d]: %w", len(arr), err)
				}
				arr = append(arr, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", t)
		}
	case json.Number:
		return convertNumber(t), nil
	default:
		// string, bool, nil
		return t, nil
	}
}

// normalize converts decoded JSON into document values.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(M, len(val))
		for k, elem := range val {
			m[k] = normalize(elem)
		}
		return m
	case []any:
		for i, elem := range val {
			val[i] = normalize(elem)
		}
		return val
	case json.Number:
		return convertNumber(val)
	default:
		return val
	}
}

// convertNumber keeps integers as int64 and falls back to float64.
func convertNumber(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
