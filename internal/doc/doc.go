// Package doc provides the document value model used by docsql.
//
// Documents are schemaless field-to-value mappings. Two shapes are used:
//
//   - M: an unordered map, the shape of every stored and returned document.
//   - D: an ordered list of key/value entries (E), used where key order is
//     meaningful (sort specs) or where deterministic statement text is wanted.
//
// Every API that accepts a "spec document" (filter, projection, sort, update)
// accepts D, M or a plain map[string]any. Unordered maps are walked in sorted
// key order so that the same spec always compiles to the same SQL text.
//
// # Values
//
// Values inside documents are limited to the JSON data model:
// string, bool, nil, int64, float64, []any and nested M. Decoding stored JSON
// keeps integers as int64 (via json.Number) so that identifiers and counters
// round-trip without float64 precision loss. Other Go integer and float types
// are accepted on input and normalized on encode.
//
// # Field paths
//
// Field names are validated and NFC-normalized before they are embedded in a
// JSON path expression. A dot separates nested segments ("a.b"). Names must not
// start with '$' and must not contain quotes, backslashes, '?' or control
// characters, since the path is written into the SQL statement text.
package doc
