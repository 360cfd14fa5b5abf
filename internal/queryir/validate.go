package queryir

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/docsql/internal/doc"
)

// ValidationResult contains the upsert-seed analysis of a filter.
//
// An upsert that matches nothing inserts a document built from the filter's
// equality clauses merged with the $set fields. That document is only
// meaningful when the filter consists solely of equality clauses; $in,
// $lte/$gte and nested $or/$and describe sets of values, not a value.
type ValidationResult struct {
	// EqualityOnly indicates the filter can seed an upserted document.
	EqualityOnly bool

	// Warnings lists the clauses that prevent seeding.
	// Empty when EqualityOnly is true.
	Warnings []string
}

// Validate checks whether a filter predicate consists only of equality
// clauses (Equals, IDEquals, IsNull) joined by the implicit top-level AND.
//
// Validate is a pure function with no side effects.
func Validate(p Predicate) ValidationResult {
	v := &validator{
		warnings: []string{},
	}

	// The top-level And is the implicit AND of the filter's keys; only
	// its children are inspected.
	switch pred := p.(type) {
	case And:
		v.validateClauses(pred.Predicates)
	case *And:
		v.validateClauses(pred.Predicates)
	default:
		v.validateClause(p)
	}

	return ValidationResult{
		EqualityOnly: len(v.warnings) == 0,
		Warnings:     v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	warnings []string
}

// addWarning appends a warning message.
func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validateClauses(clauses []Predicate) {
	for _, c := range clauses {
		v.validateClause(c)
	}
}

// validateClause validates one top-level clause.
func (v *validator) validateClause(p Predicate) {
	if p == nil {
		return
	}

	switch pred := p.(type) {
	case Equals, *Equals, IDEquals, *IDEquals, IsNull, *IsNull:
		// Equality clauses seed the document directly
	case In:
		v.addWarning("field '%s' uses $in - a set of values cannot seed a document", pred.Field)
	case *In:
		v.addWarning("field '%s' uses $in - a set of values cannot seed a document", pred.Field)
	case Lte:
		v.addWarning("field '%s' uses $lte - a range cannot seed a document", pred.Field)
	case *Lte:
		v.addWarning("field '%s' uses $lte - a range cannot seed a document", pred.Field)
	case Gte:
		v.addWarning("field '%s' uses $gte - a range cannot seed a document", pred.Field)
	case *Gte:
		v.addWarning("field '%s' uses $gte - a range cannot seed a document", pred.Field)
	case Or, *Or:
		v.addWarning("$or combinator cannot seed a document")
	case And, *And:
		v.addWarning("nested $and combinator cannot seed a document")
	default:
		v.addWarning("unknown predicate type: %T - cannot seed a document", p)
	}
}

// ErrNotEqualityFilter is returned by EqualityFields for filters that
// contain operator or combinator clauses.
var ErrNotEqualityFilter = errors.New("filter is not equality-only")

// EqualityFields builds the seed document of an upsert from a filter.
//
// Equality values are kept as the caller wrote them (not text-coerced).
// Dotted field names become nested documents; IsNull clauses become
// explicit nulls.
func EqualityFields(p Predicate) (doc.M, error) {
	result := Validate(p)
	if !result.EqualityOnly {
		return nil, fmt.Errorf("%w: %s", ErrNotEqualityFilter, strings.Join(result.Warnings, "; "))
	}

	seed := doc.M{}
	var clauses []Predicate
	switch pred := p.(type) {
	case And:
		clauses = pred.Predicates
	case *And:
		clauses = pred.Predicates
	case nil:
	default:
		clauses = []Predicate{p}
	}

	for _, c := range clauses {
		switch pred := c.(type) {
		case Equals:
			doc.SetPath(seed, pred.Field, pred.Value)
		case *Equals:
			doc.SetPath(seed, pred.Field, pred.Value)
		case IDEquals:
			seed[doc.IDField] = pred.ID
		case *IDEquals:
			seed[doc.IDField] = pred.ID
		case IsNull:
			doc.SetPath(seed, pred.Field, nil)
		case *IsNull:
			doc.SetPath(seed, pred.Field, nil)
		}
	}
	return seed, nil
}
