package doc

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// ValidateField checks that name is usable as a field path and returns its
// NFC-normalized form.
//
// Rules:
//   - not empty, no empty segments ("a..b", ".a", "a.")
//   - does not start with '$' (reserved for operators)
//   - no '"', '\'', '\\', '?' or control characters
func ValidateField(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty field name")
	}
	normalized := norm.NFC.String(name)
	if strings.HasPrefix(normalized, "$") {
		return "", fmt.Errorf("field %q: names starting with '$' are reserved for operators", name)
	}
	for _, seg := range splitPath(normalized) {
		if seg == "" {
			return "", fmt.Errorf("field %q: empty path segment", name)
		}
	}
	for _, r := range normalized {
		switch {
		case r == '"', r == '\'', r == '\\', r == '?':
			return "", fmt.Errorf("field %q: character %q is not allowed", name, r)
		case unicode.IsControl(r):
			return "", fmt.Errorf("field %q: control characters are not allowed", name)
		}
	}
	return normalized, nil
}

// JSONPath renders a validated field name as a quoted JSON path,
// e.g. "a.b" becomes `$."a"."b"`.
// The result is only safe for names that passed ValidateField.
func JSONPath(field string) string {
	var b strings.Builder
	b.WriteByte('$')
	for _, seg := range splitPath(field) {
		b.WriteString(`."`)
		b.WriteString(seg)
		b.WriteByte('"')
	}
	return b.String()
}

// IsNested reports whether a field name addresses a nested path.
func IsNested(field string) bool {
	return strings.Contains(field, ".")
}

func splitPath(field string) []string {
	return strings.Split(field, ".")
}
