package queryir

// Query represents a statement against the document table.
//
// This is a sealed interface - only types in this package implement it.
//
// Query types:
//   - Select: read documents matching a filter
//   - Insert: add one serialized document
//   - Update: apply field replacements to matching documents
//   - Delete: remove matching documents
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Predicate represents a filter condition.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Select reads documents.
//
// Semantics:
//
//	SELECT doc FROM <table> WHERE <filter> [ORDER BY <sort>, _id] [LIMIT <limit>]
//
// Projection is applied to decoded documents after the read; it never
// changes the statement.
type Select struct {
	Filter     Predicate // nil = match everything
	Projection []string  // included top-level fields (nil = whole document)
	Sort       []SortKey // first key has highest precedence
	Limit      uint64    // 0 = no limit
}

func (Select) queryNode() {}

// Insert adds one document.
type Insert struct {
	ID       string // primary key value
	Document string // serialized JSON text, already containing _id
}

func (Insert) queryNode() {}

// Update replaces fields of matching documents in a single statement.
type Update struct {
	Filter Predicate
	Set    []SetField // at least one
	Single bool       // affect at most one row
}

func (Update) queryNode() {}

// Delete removes matching documents.
type Delete struct {
	Filter Predicate
	Single bool // affect at most one row
}

func (Delete) queryNode() {}

// SortKey orders results by one field.
type SortKey struct {
	Field      string
	Descending bool
}

// SetField replaces one field with a new value.
// JSON holds the value serialized as JSON literal text, which is what the
// JSON mutation functions of every backend take.
type SetField struct {
	Field string
	Value any
	JSON  string
}

// IDEquals matches the document whose primary key equals ID.
// It bypasses field-path extraction.
type IDEquals struct {
	ID string
}

func (IDEquals) predicateNode() {}

// Equals matches documents whose field, coerced to text, equals Text.
//
// Value keeps the caller's original value; it seeds upserted documents.
type Equals struct {
	Field string
	Value any
	Text  string
}

func (Equals) predicateNode() {}

// In matches documents whose field, coerced to text, is one of Values.
// An empty Values list matches nothing.
type In struct {
	Field  string
	Values []string
}

func (In) predicateNode() {}

// Lte matches documents whose field, cast to an integer, is <= Value.
type Lte struct {
	Field string
	Value any // int64 or float64
}

func (Lte) predicateNode() {}

// Gte matches documents whose field, cast to an integer, is >= Value.
type Gte struct {
	Field string
	Value any // int64 or float64
}

func (Gte) predicateNode() {}

// IsNull matches documents whose field is JSON null or absent.
type IsNull struct {
	Field string
}

func (IsNull) predicateNode() {}

// And is a conjunction. Empty Predicates is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or is a disjunction. Empty Predicates is always false.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}
