package querysql

import (
	"fmt"
	"regexp"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/docsql/internal/doc"
	"github.com/roach88/docsql/internal/queryir"
)

var sb = sq.StatementBuilder.PlaceholderFormat(sq.Question)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// ValidateTable checks that name can be embedded as a table identifier.
func ValidateTable(name string) error {
	if !tableNamePattern.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

// SQLCompiler compiles QueryIR to parameterized SQL for one document table.
//
// CRITICAL: All values are parameterized (never interpolated). Only validated
// field paths and the validated table name are embedded in statement text.
type SQLCompiler struct {
	Dialect Dialect
	Table   string
}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler(d Dialect, table string) *SQLCompiler {
	return &SQLCompiler{Dialect: d, Table: table}
}

// Compile converts a QueryIR query to parameterized SQL.
// Returns (sql, params, error) tuple.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if q == nil {
		return "", nil, fmt.Errorf("cannot compile nil query")
	}
	if c.Dialect == nil {
		return "", nil, fmt.Errorf("compiler has no dialect")
	}
	if err := ValidateTable(c.Table); err != nil {
		return "", nil, err
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	case queryir.Insert:
		return c.compileInsert(query)
	case *queryir.Insert:
		return c.compileInsert(*query)
	case queryir.Update:
		return c.compileUpdate(query)
	case *queryir.Update:
		return c.compileUpdate(*query)
	case queryir.Delete:
		return c.compileDelete(query)
	case *queryir.Delete:
		return c.compileDelete(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

// CompilePredicate compiles a filter predicate to a boolean SQL expression.
func (c *SQLCompiler) CompilePredicate(p queryir.Predicate) (string, []any, error) {
	expr, err := c.compilePredicate(p)
	if err != nil {
		return "", nil, err
	}
	return expr.ToSql()
}

// compileSelect reads the doc column. Projection is applied by the caller
// after decoding, so it does not change the statement.
func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	where, err := c.compilePredicate(q.Filter)
	if err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}

	query := sb.Select(ColumnDoc).From(c.Table).Where(where)

	if len(q.Sort) > 0 {
		orderBys := make([]string, 0, len(q.Sort)+1)
		for _, key := range q.Sort {
			dir := "ASC"
			if key.Descending {
				dir = "DESC"
			}
			orderBys = append(orderBys, c.Dialect.ExtractRaw(doc.JSONPath(key.Field))+" "+dir)
		}
		// Tiebreaker for keys with equal (or missing) values
		orderBys = append(orderBys, ColumnID+" ASC")
		query = query.OrderBy(orderBys...)
	}

	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	return query.ToSql()
}

func (c *SQLCompiler) compileInsert(q queryir.Insert) (string, []any, error) {
	return sb.Insert(c.Table).
		Columns(ColumnID, ColumnDoc).
		Values(q.ID, q.Document).
		ToSql()
}

func (c *SQLCompiler) compileUpdate(q queryir.Update) (string, []any, error) {
	if len(q.Set) == 0 {
		return "", nil, fmt.Errorf("update has no fields to set")
	}

	paths := make([]string, len(q.Set))
	values := make([]any, len(q.Set))
	for i, f := range q.Set {
		paths[i] = doc.JSONPath(f.Field)
		values[i] = f.JSON
	}

	where, err := c.compilePredicate(q.Filter)
	if err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}

	query := sb.Update(c.Table).Set(ColumnDoc, sq.Expr(c.Dialect.SetFields(paths), values...))
	if !q.Single {
		return query.Where(where).ToSql()
	}
	if c.Dialect.NativeLimit() {
		return query.Where(where).Limit(1).ToSql()
	}
	single, err := c.singleRow(where)
	if err != nil {
		return "", nil, err
	}
	return query.Where(single).ToSql()
}

func (c *SQLCompiler) compileDelete(q queryir.Delete) (string, []any, error) {
	where, err := c.compilePredicate(q.Filter)
	if err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}

	query := sb.Delete(c.Table)
	if !q.Single {
		return query.Where(where).ToSql()
	}
	if c.Dialect.NativeLimit() {
		return query.Where(where).Limit(1).ToSql()
	}
	single, err := c.singleRow(where)
	if err != nil {
		return "", nil, err
	}
	return query.Where(single).ToSql()
}

// singleRow narrows a mutation to the first matching row for engines
// without UPDATE/DELETE ... LIMIT.
func (c *SQLCompiler) singleRow(where sq.Sqlizer) (sq.Sqlizer, error) {
	sub, args, err := sb.Select(ColumnID).From(c.Table).Where(where).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("compile single-row selection: %w", err)
	}
	return sq.Expr(ColumnID+" IN ("+sub+")", args...), nil
}

// compilePredicate compiles a queryir.Predicate to a squirrel expression.
// CRITICAL: Values NEVER interpolated - always use ? placeholders.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (sq.Sqlizer, error) {
	if p == nil {
		return sq.And{}, nil // Always true
	}

	switch pred := p.(type) {
	case queryir.IDEquals:
		return sq.Eq{ColumnID: pred.ID}, nil
	case *queryir.IDEquals:
		return sq.Eq{ColumnID: pred.ID}, nil
	case queryir.Equals:
		return c.compileEquals(pred), nil
	case *queryir.Equals:
		return c.compileEquals(*pred), nil
	case queryir.In:
		return c.compileIn(pred), nil
	case *queryir.In:
		return c.compileIn(*pred), nil
	case queryir.Lte:
		return sq.Expr(c.Dialect.ExtractInt(doc.JSONPath(pred.Field))+" <= ?", pred.Value), nil
	case *queryir.Lte:
		return sq.Expr(c.Dialect.ExtractInt(doc.JSONPath(pred.Field))+" <= ?", pred.Value), nil
	case queryir.Gte:
		return sq.Expr(c.Dialect.ExtractInt(doc.JSONPath(pred.Field))+" >= ?", pred.Value), nil
	case *queryir.Gte:
		return sq.Expr(c.Dialect.ExtractInt(doc.JSONPath(pred.Field))+" >= ?", pred.Value), nil
	case queryir.IsNull:
		return sq.Expr(c.Dialect.IsNull(doc.JSONPath(pred.Field))), nil
	case *queryir.IsNull:
		return sq.Expr(c.Dialect.IsNull(doc.JSONPath(pred.Field))), nil
	case queryir.And:
		return c.compileAnd(pred.Predicates)
	case *queryir.And:
		return c.compileAnd(pred.Predicates)
	case queryir.Or:
		return c.compileOr(pred.Predicates)
	case *queryir.Or:
		return c.compileOr(pred.Predicates)
	default:
		return nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileEquals compares the text form of the field with the text form of
// the value.
func (c *SQLCompiler) compileEquals(eq queryir.Equals) sq.Sqlizer {
	return sq.Expr(c.Dialect.ExtractText(doc.JSONPath(eq.Field))+" = ?", eq.Text)
}

// compileIn matches nothing for an empty list.
func (c *SQLCompiler) compileIn(in queryir.In) sq.Sqlizer {
	if len(in.Values) == 0 {
		return sq.Or{}
	}
	args := make([]any, len(in.Values))
	for i, v := range in.Values {
		args[i] = v
	}
	return sq.Expr(fmt.Sprintf("%s IN (%s)", c.Dialect.ExtractText(doc.JSONPath(in.Field)), sq.Placeholders(len(args))), args...)
}

// compileAnd yields (1=1) for no children.
func (c *SQLCompiler) compileAnd(preds []queryir.Predicate) (sq.Sqlizer, error) {
	parts := make(sq.And, 0, len(preds))
	for _, p := range preds {
		part, err := c.compilePredicate(p)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	return parts, nil
}

// compileOr yields (1=0) for no children.
func (c *SQLCompiler) compileOr(preds []queryir.Predicate) (sq.Sqlizer, error) {
	parts := make(sq.Or, 0, len(preds))
	for _, p := range preds {
		part, err := c.compilePredicate(p)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	return parts, nil
}
