// Package harness provides conformance testing for docsql collections.
//
// The harness runs YAML scenarios against a fresh in-memory SQLite table,
// validates each step's outcome, and records a trace for golden comparison.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	table: documents        # optional
//	id_prefix: doc          # optional, generated ids are doc-1, doc-2, ...
//	steps:
//	  - op: insert_one
//	    document: { a: 1, b: x }
//	    expect:
//	      result: { insertedId: doc-1 }
//	  - op: find
//	    filter: { a: { $gte: 1 } }
//	    sort: { a: -1, b: 1 }
//	    limit: 2
//	    expect:
//	      docs:
//	        - { _id: doc-1, a: 1, b: x }
//	  - op: update_one
//	    filter: { a: 99 }
//	    update: { $set: { c: 5 } }
//	    upsert: true
//	  - op: delete_many
//	    filter: { a: { $regex: x } }
//	    expect:
//	      error: INVALID_OPERATOR
//	assertions:
//	  - type: count
//	    filter: { a: 99 }
//	    count: 1
//	  - type: contains
//	    filter: { a: 99 }
//	    document: { c: 5 }
//
// Mappings keep their written key order, so a multi-key sort is written as
// a plain YAML mapping.
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - count: Verifies how many documents match a filter
//   - contains: Verifies some matching document has the given fields
//   - trace_count: Verifies an op appears exactly N times
//   - trace_order: Verifies ops appear in specified order
package harness
