package querysql

import (
	"fmt"
	"strings"
)

// Column names of the document table.
const (
	ColumnID  = "_id"
	ColumnDoc = "doc"
)

// Dialect renders the engine-specific pieces of a statement: JSON
// extraction, casts, null tests and in-place field updates.
//
// Every path argument is a quoted JSON path produced by doc.JSONPath from a
// validated field name, so it can be embedded in a string literal as-is.
type Dialect interface {
	// Name identifies the dialect, matching the database/sql driver name.
	Name() string

	// ExtractRaw returns the raw JSON value at path, used for ordering.
	ExtractRaw(path string) string

	// ExtractText returns the value at path coerced to text. Strings
	// are unquoted; booleans render as "true"/"false"; JSON null and
	// absent paths are NULL.
	ExtractText(path string) string

	// ExtractInt returns the value at path cast to an integer.
	ExtractInt(path string) string

	// IsNull is true when the value at path is JSON null or absent. Rows
	// whose doc column is not valid JSON never match.
	IsNull(path string) string

	// SetFields returns an expression that rewrites the doc column with
	// every path replaced by the JSON text of one bound parameter.
	SetFields(paths []string) string

	// CreateTable returns the DDL for a document table.
	CreateTable(table string) string

	// NativeLimit reports whether UPDATE and DELETE accept a LIMIT clause.
	NativeLimit() bool
}

// DialectFor returns the dialect for a database/sql driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "mysql":
		return MySQL{}, nil
	case "sqlite3", "sqlite":
		return SQLite{}, nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

// whenValid evaluates expr only for rows whose doc column holds valid JSON.
// Other rows yield NULL, so they fail field predicates and sort as missing
// instead of aborting the statement.
func whenValid(validFn, expr string) string {
	return fmt.Sprintf("CASE WHEN %s(%s) THEN %s END", validFn, ColumnDoc, expr)
}

// MySQL renders statements for MySQL 5.7+ JSON functions.
type MySQL struct{}

func (MySQL) Name() string { return "mysql" }

func (MySQL) ExtractRaw(path string) string {
	return whenValid("JSON_VALID", fmt.Sprintf("JSON_EXTRACT(%s, '%s')", ColumnDoc, path))
}

// ExtractText yields NULL for JSON null so that it never equals "null".
func (MySQL) ExtractText(path string) string {
	raw := fmt.Sprintf("JSON_EXTRACT(%s, '%s')", ColumnDoc, path)
	return whenValid("JSON_VALID", fmt.Sprintf("CASE JSON_TYPE(%s) WHEN 'NULL' THEN NULL ELSE JSON_UNQUOTE(%s) END", raw, raw))
}

func (d MySQL) ExtractInt(path string) string {
	return fmt.Sprintf("CAST(%s AS SIGNED)", d.ExtractRaw(path))
}

func (MySQL) IsNull(path string) string {
	return fmt.Sprintf("(CASE WHEN JSON_VALID(%s) THEN COALESCE(JSON_TYPE(JSON_EXTRACT(%s, '%s')), 'NULL') = 'NULL' ELSE FALSE END)",
		ColumnDoc, ColumnDoc, path)
}

func (MySQL) SetFields(paths []string) string {
	var b strings.Builder
	b.WriteString("JSON_SET(")
	b.WriteString(ColumnDoc)
	for _, p := range paths {
		fmt.Fprintf(&b, ", '%s', CAST(? AS JSON)", p)
	}
	b.WriteByte(')')
	return b.String()
}

func (MySQL) CreateTable(table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s VARCHAR(128) NOT NULL PRIMARY KEY, %s LONGTEXT NOT NULL)",
		table, ColumnID, ColumnDoc)
}

func (MySQL) NativeLimit() bool { return true }

// SQLite renders statements for the SQLite JSON1 functions.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite3" }

func (SQLite) ExtractRaw(path string) string {
	return whenValid("json_valid", fmt.Sprintf("json_extract(%s, '%s')", ColumnDoc, path))
}

// ExtractText unquotes strings and otherwise returns the stored JSON
// literal through ->, so numbers keep their written digits and booleans
// read "true"/"false". JSON null yields NULL.
func (SQLite) ExtractText(path string) string {
	return whenValid("json_valid", fmt.Sprintf(
		"CASE json_type(%[1]s, '%[2]s') WHEN 'text' THEN json_extract(%[1]s, '%[2]s') WHEN 'null' THEN NULL ELSE %[1]s -> '%[2]s' END",
		ColumnDoc, path))
}

func (d SQLite) ExtractInt(path string) string {
	return fmt.Sprintf("CAST(%s AS INTEGER)", d.ExtractRaw(path))
}

func (SQLite) IsNull(path string) string {
	return fmt.Sprintf("(CASE WHEN json_valid(%s) THEN coalesce(json_type(%s, '%s'), 'null') = 'null' ELSE 0 END)",
		ColumnDoc, ColumnDoc, path)
}

func (SQLite) SetFields(paths []string) string {
	var b strings.Builder
	b.WriteString("json_set(")
	b.WriteString(ColumnDoc)
	for _, p := range paths {
		fmt.Fprintf(&b, ", '%s', json(?)", p)
	}
	b.WriteByte(')')
	return b.String()
}

func (SQLite) CreateTable(table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s VARCHAR(128) NOT NULL PRIMARY KEY, %s TEXT NOT NULL)",
		table, ColumnID, ColumnDoc)
}

// NativeLimit is false: UPDATE ... LIMIT needs a non-default build option.
func (SQLite) NativeLimit() bool { return false }
