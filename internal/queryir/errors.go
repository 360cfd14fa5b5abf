package queryir

import (
	"errors"
	"fmt"
)

// ParseError reports a spec document that cannot be represented in the IR.
type ParseError struct {
	// Code identifies the error category.
	Code ParseErrorCode

	// Path locates the offending element, e.g. "$or[1].age.$lte".
	Path string

	// Message is a human-readable description.
	Message string
}

// ParseErrorCode categorizes parse errors.
type ParseErrorCode string

const (
	// ErrCodeInvalidFilter indicates a filter value of an unsupported shape.
	ErrCodeInvalidFilter ParseErrorCode = "INVALID_FILTER"

	// ErrCodeInvalidOperator indicates an unknown or misused $-operator.
	ErrCodeInvalidOperator ParseErrorCode = "INVALID_OPERATOR"

	// ErrCodeInvalidField indicates a field name that cannot be used as a path.
	ErrCodeInvalidField ParseErrorCode = "INVALID_FIELD"

	// ErrCodeInvalidSort indicates a malformed or ambiguous sort spec.
	ErrCodeInvalidSort ParseErrorCode = "INVALID_SORT"

	// ErrCodeInvalidProjection indicates a malformed projection.
	ErrCodeInvalidProjection ParseErrorCode = "INVALID_PROJECTION"

	// ErrCodeInvalidUpdate indicates a $set entry that cannot be applied.
	ErrCodeInvalidUpdate ParseErrorCode = "INVALID_UPDATE"

	// ErrCodeInvalidLimit indicates a negative limit.
	ErrCodeInvalidLimit ParseErrorCode = "INVALID_LIMIT"

	// ErrCodeInvalidID indicates an _id that is not a string.
	ErrCodeInvalidID ParseErrorCode = "INVALID_ID"
)

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (at %s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsParseError reports whether err is or wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// HasCode reports whether err is or wraps a *ParseError with the given code.
func HasCode(err error, code ParseErrorCode) bool {
	var pe *ParseError
	return errors.As(err, &pe) && pe.Code == code
}

func newParseError(code ParseErrorCode, path, format string, args ...any) *ParseError {
	return &ParseError{
		Code:    code,
		Path:    path,
		Message: fmt.Sprintf(format, args...),
	}
}
