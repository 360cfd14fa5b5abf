package doc

import (
	"encoding/json"
	"math"
	"strconv"
)

// Stringify coerces a scalar to the text form used for equality matching.
//
// Strings are returned as-is, booleans as "true"/"false", integers in base 10
// and floats exactly as Encode writes them into stored documents (integral
// floats drop the fraction, so 1.0 and 1 compare equal; very large or small
// magnitudes use exponent form such as 1e+21). Returns false for nil and for
// composite values, which have no text form.
func Stringify(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case int:
		return strconv.FormatInt(int64(val), 10), true
	case int8:
		return strconv.FormatInt(int64(val), 10), true
	case int16:
		return strconv.FormatInt(int64(val), 10), true
	case int32:
		return strconv.FormatInt(int64(val), 10), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case uint:
		return strconv.FormatUint(uint64(val), 10), true
	case uint8:
		return strconv.FormatUint(uint64(val), 10), true
	case uint16:
		return strconv.FormatUint(uint64(val), 10), true
	case uint32:
		return strconv.FormatUint(uint64(val), 10), true
	case uint64:
		return strconv.FormatUint(val, 10), true
	case float32:
		return formatFloat(float64(val), 32), true
	case float64:
		return formatFloat(val, 64), true
	case json.Number:
		return val.String(), true
	default:
		return "", false
	}
}

// Numeric normalizes a numeric value to int64 or float64.
// Returns false for anything that is not a number.
func Numeric(v any) (any, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint:
		return int64(val), true
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		if val > math.MaxInt64 {
			return nil, false
		}
		return int64(val), true
	case float32:
		return float64(val), true
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, false
		}
		return val, true
	case json.Number:
		n := convertNumber(val)
		if _, isString := n.(string); isString {
			return nil, false
		}
		return n, true
	default:
		return nil, false
	}
}

// formatFloat follows the float encoding of encoding/json.
func formatFloat(f float64, bits int) string {
	abs := math.Abs(f)
	format := byte('f')
	if abs != 0 {
		if bits == 64 && (abs < 1e-6 || abs >= 1e21) ||
			bits == 32 && (float32(abs) < 1e-6 || float32(abs) >= 1e21) {
			format = 'e'
		}
	}
	s := strconv.FormatFloat(f, format, -1, bits)
	if format == 'e' {
		// e-09 becomes e-9
		if n := len(s); n >= 4 && s[n-4] == 'e' && s[n-3] == '-' && s[n-2] == '0' {
			s = s[:n-2] + s[n-1:]
		}
	}
	return s
}
