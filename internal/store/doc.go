// Package store opens and owns the relational table that holds documents.
//
// Every document lives in one row of a two-column table:
//
//	_id  VARCHAR(128) PRIMARY KEY   the document identifier
//	doc  TEXT / LONGTEXT            the document serialized as JSON
//
// Two engines are supported, selected by driver name:
//
//   - sqlite3: github.com/mattn/go-sqlite3, WAL mode, one open connection
//   - mysql:   github.com/go-sql-driver/mysql, opened with clientFoundRows
//     so affected-row counts report matched rows
//
// The store executes statements compiled by internal/querysql and classifies
// driver errors (see IsDuplicateKey). It does not retry statements; only the
// initial connection ping is retried while the database comes up.
//
// # Database Configuration (sqlite3)
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
