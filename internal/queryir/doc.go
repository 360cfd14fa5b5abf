// Package queryir provides the query intermediate representation (IR) for
// docsql.
//
// QueryIR is the boundary between schemaless spec documents (filters,
// projections, sorts, updates) and the SQL statement compiler. Spec documents
// are parsed here, once, into a closed set of tagged variants. Anything that
// does not fit one of the variants is rejected at this boundary with a
// *ParseError instead of being misinterpreted deeper in compilation.
//
// ARCHITECTURE:
//
//	[filter/update documents] → Parse* → [Query IR] → querysql → [SQL + params]
//
// PREDICATES:
//
//	Filter shape                 Predicate
//	------------                 ---------
//	{_id: "abc"}                 IDEquals{ID: "abc"}
//	{a: 1}                       Equals{Field: "a", Value: 1, Text: "1"}
//	{a: null}                    IsNull{Field: "a"}
//	{a: {$in: [1, 2]}}           In{Field: "a", Values: ["1", "2"]}
//	{a: {$lte: 5}}               Lte{Field: "a", Value: 5}
//	{a: {$gte: 5}}               Gte{Field: "a", Value: 5}
//	{$or: [f1, f2]}              Or{Predicates: [p1, p2]}
//	{$and: [f1, f2]}             And{Predicates: [p1, p2]}
//	{a: 1, b: 2}                 And{Predicates: [Equals a, Equals b]} (implicit AND)
//
// EMPTY LISTS:
//
// The empty-list policy is fixed here and honored by every backend:
//   - And{} is unconditionally true (a filter with no keys matches everything)
//   - Or{} is unconditionally false
//   - In{Values: []} is unconditionally false (matches nothing, never "no filter")
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed interfaces using the marker method pattern.
// Only types in this package implement them, so backends can switch
// exhaustively:
//
//	switch p := pred.(type) {
//	case Equals:
//	case In:
//	...
//	default:
//	    // unreachable for IR built by this package
//	}
//
// UPSERT SEEDS:
//
// Validate reports whether a filter consists only of equality clauses. Only
// such filters can seed the document inserted by an upsert; see
// EqualityFields.
package queryir
