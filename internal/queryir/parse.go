package queryir

import (
	"fmt"
	"strings"

	"github.com/roach88/docsql/internal/doc"
)

// Operator names recognized in filter and update documents.
const (
	OpOr  = "$or"
	OpAnd = "$and"
	OpIn  = "$in"
	OpLte = "$lte"
	OpGte = "$gte"
	OpSet = "$set"
)

// ParseFilter converts a filter document into a Predicate.
//
// The result is always an And of the top-level clauses (implicit AND), so a
// filter without keys (or a nil filter) yields And{}, which matches
// everything.
func ParseFilter(filter any) (Predicate, error) {
	return parseFilter(filter, "")
}

func parseFilter(filter any, path string) (Predicate, error) {
	entries, ok := doc.Entries(filter)
	if !ok {
		return nil, newParseError(ErrCodeInvalidFilter, path, "filter must be a document, got %T", filter)
	}

	clauses := make([]Predicate, 0, len(entries))
	for _, e := range entries {
		clause, err := parseClause(e.Key, e.Value, joinPath(path, e.Key))
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}
	return And{Predicates: clauses}, nil
}

func parseClause(key string, value any, path string) (Predicate, error) {
	switch {
	case key == OpOr || key == OpAnd:
		children, err := parseFilterList(key, value, path)
		if err != nil {
			return nil, err
		}
		if key == OpOr {
			return Or{Predicates: children}, nil
		}
		return And{Predicates: children}, nil

	case strings.HasPrefix(key, "$"):
		return nil, newParseError(ErrCodeInvalidOperator, path, "unknown top-level operator %q", key)
	}

	field, err := doc.ValidateField(key)
	if err != nil {
		return nil, newParseError(ErrCodeInvalidField, path, "%v", err)
	}

	if field == doc.IDField {
		if id, isString := value.(string); isString {
			return IDEquals{ID: id}, nil
		}
	}

	if value == nil {
		return IsNull{Field: field}, nil
	}

	if doc.IsDocument(value) {
		return parseOperatorDocument(field, value, path)
	}

	if _, isList := doc.List(value); isList {
		return nil, newParseError(ErrCodeInvalidFilter, path, "array equality is not supported")
	}

	text, ok := doc.Stringify(value)
	if !ok {
		return nil, newParseError(ErrCodeInvalidFilter, path, "unsupported value type %T", value)
	}
	return Equals{Field: field, Value: value, Text: text}, nil
}

// parseFilterList parses the operand of $or / $and: an ordered list of filters.
func parseFilterList(op string, value any, path string) ([]Predicate, error) {
	list, ok := doc.List(value)
	if !ok {
		return nil, newParseError(ErrCodeInvalidOperator, path, "%s requires a list of filters, got %T", op, value)
	}

	children := make([]Predicate, 0, len(list))
	for i, item := range list {
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		if !doc.IsDocument(item) {
			return nil, newParseError(ErrCodeInvalidFilter, itemPath, "element of %s must be a document, got %T", op, item)
		}
		child, err := parseFilter(item, itemPath)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

// parseOperatorDocument parses {$in: [...]}, {$lte: v} or {$gte: v}.
// Exactly one operator may appear per sub-document.
func parseOperatorDocument(field string, value any, path string) (Predicate, error) {
	entries, _ := doc.Entries(value)
	if len(entries) == 0 {
		return nil, newParseError(ErrCodeInvalidFilter, path, "empty operator document")
	}

	for _, e := range entries {
		if !strings.HasPrefix(e.Key, "$") {
			return nil, newParseError(ErrCodeInvalidFilter, path, "embedded document equality is not supported")
		}
	}
	if len(entries) > 1 {
		return nil, newParseError(ErrCodeInvalidOperator, path, "exactly one operator is allowed per field, got %d", len(entries))
	}

	op := entries[0]
	opPath := joinPath(path, op.Key)
	switch op.Key {
	case OpIn:
		list, ok := doc.List(op.Value)
		if !ok {
			return nil, newParseError(ErrCodeInvalidOperator, opPath, "$in requires a list, got %T", op.Value)
		}
		values := make([]string, 0, len(list))
		for i, item := range list {
			text, ok := doc.Stringify(item)
			if !ok {
				return nil, newParseError(ErrCodeInvalidOperator, fmt.Sprintf("%s[%d]", opPath, i), "unsupported $in value type %T", item)
			}
			values = append(values, text)
		}
		return In{Field: field, Values: values}, nil

	case OpLte, OpGte:
		n, ok := doc.Numeric(op.Value)
		if !ok {
			return nil, newParseError(ErrCodeInvalidOperator, opPath, "%s requires a number, got %T", op.Key, op.Value)
		}
		if op.Key == OpLte {
			return Lte{Field: field, Value: n}, nil
		}
		return Gte{Field: field, Value: n}, nil

	default:
		return nil, newParseError(ErrCodeInvalidOperator, opPath, "unsupported operator %q", op.Key)
	}
}

// ParseProjection returns the included top-level fields of a projection.
//
// Fields flagged 1 or true are included; 0 or false entries are skipped.
// A nil result means "return the whole document", which is also what a
// projection without any inclusion flag yields.
func ParseProjection(spec any) ([]string, error) {
	entries, ok := doc.Entries(spec)
	if !ok {
		return nil, newParseError(ErrCodeInvalidProjection, "", "projection must be a document, got %T", spec)
	}

	var fields []string
	for _, e := range entries {
		field, err := doc.ValidateField(e.Key)
		if err != nil {
			return nil, newParseError(ErrCodeInvalidProjection, e.Key, "%v", err)
		}
		if doc.IsNested(field) {
			return nil, newParseError(ErrCodeInvalidProjection, e.Key, "only top-level fields can be projected")
		}

		include, err := projectionFlag(e.Value)
		if err != nil {
			return nil, newParseError(ErrCodeInvalidProjection, e.Key, "%v", err)
		}
		if include {
			fields = append(fields, field)
		}
	}
	return fields, nil
}

func projectionFlag(v any) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	n, ok := doc.Numeric(v)
	if !ok {
		return false, fmt.Errorf("projection flag must be 1, 0, true or false, got %T", v)
	}
	switch n {
	case int64(1), float64(1):
		return true, nil
	case int64(0), float64(0):
		return false, nil
	default:
		return false, fmt.Errorf("projection flag must be 1 or 0, got %v", n)
	}
}

// ParseSort converts a sort spec into ordered sort keys.
//
// Use doc.D for multi-key sorts. An unordered map carries no key order in
// Go, so a map with more than one key is rejected as ambiguous.
func ParseSort(spec any) ([]SortKey, error) {
	entries, ok := doc.Entries(spec)
	if !ok {
		return nil, newParseError(ErrCodeInvalidSort, "", "sort must be a document, got %T", spec)
	}
	if _, ordered := spec.(doc.D); !ordered && len(entries) > 1 {
		return nil, newParseError(ErrCodeInvalidSort, "", "multi-key sort requires an ordered document (doc.D)")
	}

	keys := make([]SortKey, 0, len(entries))
	for _, e := range entries {
		field, err := doc.ValidateField(e.Key)
		if err != nil {
			return nil, newParseError(ErrCodeInvalidSort, e.Key, "%v", err)
		}
		n, ok := doc.Numeric(e.Value)
		if !ok {
			return nil, newParseError(ErrCodeInvalidSort, e.Key, "sort direction must be 1 or -1, got %T", e.Value)
		}
		switch n {
		case int64(1), float64(1):
			keys = append(keys, SortKey{Field: field})
		case int64(-1), float64(-1):
			keys = append(keys, SortKey{Field: field, Descending: true})
		default:
			return nil, newParseError(ErrCodeInvalidSort, e.Key, "sort direction must be 1 or -1, got %v", n)
		}
	}
	return keys, nil
}

// ParseLimit validates a cursor limit. Zero means "no limit".
func ParseLimit(n int64) (uint64, error) {
	if n < 0 {
		return 0, newParseError(ErrCodeInvalidLimit, "", "limit must not be negative, got %d", n)
	}
	return uint64(n), nil
}

// ParseUpdate extracts the $set instructions of an update document.
//
// Only the $set form is supported. When the update has no $set key, or $set
// is not a non-empty document, ok is false and the update must be treated as
// a no-op. Other operator keys next to $set are ignored.
func ParseUpdate(update any) (set []SetField, ok bool, err error) {
	entries, isDoc := doc.Entries(update)
	if !isDoc {
		return nil, false, nil
	}

	var setDoc any
	found := false
	for _, e := range entries {
		if e.Key == OpSet {
			setDoc, found = e.Value, true
		}
	}
	if !found || !doc.IsDocument(setDoc) {
		return nil, false, nil
	}

	setEntries, _ := doc.Entries(setDoc)
	if len(setEntries) == 0 {
		return nil, false, nil
	}

	set = make([]SetField, 0, len(setEntries))
	for _, e := range setEntries {
		path := joinPath(OpSet, e.Key)
		field, err := doc.ValidateField(e.Key)
		if err != nil {
			return nil, false, newParseError(ErrCodeInvalidField, path, "%v", err)
		}
		if field == doc.IDField {
			return nil, false, newParseError(ErrCodeInvalidUpdate, path, "_id cannot be modified")
		}
		text, err := doc.MarshalValue(e.Value)
		if err != nil {
			return nil, false, newParseError(ErrCodeInvalidUpdate, path, "value is not JSON-serializable: %v", err)
		}
		set = append(set, SetField{Field: field, Value: e.Value, JSON: text})
	}
	return set, true, nil
}

// ParseSelect parses every part of a read.
func ParseSelect(filter, projection, sort any, limit int64) (Select, error) {
	pred, err := ParseFilter(filter)
	if err != nil {
		return Select{}, err
	}
	fields, err := ParseProjection(projection)
	if err != nil {
		return Select{}, err
	}
	keys, err := ParseSort(sort)
	if err != nil {
		return Select{}, err
	}
	n, err := ParseLimit(limit)
	if err != nil {
		return Select{}, err
	}
	return Select{Filter: pred, Projection: fields, Sort: keys, Limit: n}, nil
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
