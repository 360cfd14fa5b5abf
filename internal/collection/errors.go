package collection

import (
	"errors"

	"github.com/roach88/docsql/internal/queryir"
	"github.com/roach88/docsql/internal/store"
)

// ErrUnsafeUpsert is returned when an upsert matches nothing and its filter
// contains clauses ($in, $lte, $gte, $or, nested $and) that cannot be turned
// into the fields of a new document.
var ErrUnsafeUpsert = errors.New("upsert filter is not equality-only")

// Error codes reported for failures that are not a ParseError.
const (
	CodeDuplicateKey = "DUPLICATE_KEY"
	CodeUnsafeUpsert = "UNSAFE_UPSERT"
	CodeBackend      = "BACKEND_ERROR"
)

// ErrorCode classifies an operation error as the ParseError code,
// DUPLICATE_KEY, UNSAFE_UPSERT or BACKEND_ERROR. It returns "" for nil.
func ErrorCode(err error) string {
	var pe *queryir.ParseError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &pe):
		return string(pe.Code)
	case errors.Is(err, ErrUnsafeUpsert):
		return CodeUnsafeUpsert
	case store.IsDuplicateKey(err):
		return CodeDuplicateKey
	default:
		return CodeBackend
	}
}
