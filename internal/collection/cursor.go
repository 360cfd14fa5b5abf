package collection

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/docsql/internal/doc"
	"github.com/roach88/docsql/internal/queryir"
)

// Cursor describes a read: filter, projection, sort and limit.
//
// A Cursor is an immutable value. Each chained call returns a new cursor
// and leaves the receiver unchanged, so a cursor can be reused or shared
// between goroutines. Specs are parsed when the cursor executes.
type Cursor struct {
	coll       *Collection
	filter     any
	projection any
	sort       any
	limit      int64
}

// Find returns a cursor with a new filter. Sort and limit are reset; the
// projection is kept unless a non-nil one is given.
func (c Cursor) Find(filter, projection any) Cursor {
	next := Cursor{coll: c.coll, filter: filter, projection: c.projection}
	if projection != nil {
		next.projection = projection
	}
	return next
}

// Project returns a cursor that keeps only the fields flagged 1 (or true)
// in spec. Only top-level fields can be projected.
func (c Cursor) Project(spec any) Cursor {
	c.projection = spec
	return c
}

// Sort returns a cursor ordered by spec: field to 1 (ascending) or -1
// (descending). Use doc.D for more than one key; earlier keys take
// precedence.
func (c Cursor) Sort(spec any) Cursor {
	c.sort = spec
	return c
}

// Limit returns a cursor capped at n documents. Zero means no limit; a
// negative n fails with an INVALID_LIMIT ParseError at execution.
func (c Cursor) Limit(n int64) Cursor {
	c.limit = n
	return c
}

// Explain returns the statement ToArray would execute.
func (c Cursor) Explain() (string, []any, error) {
	sel, err := queryir.ParseSelect(c.filter, c.projection, c.sort, c.limit)
	if err != nil {
		return "", nil, err
	}
	return c.coll.compiler.Compile(sel)
}

// ToArray executes the read and returns the matching documents in order.
//
// A stored row that cannot be decoded is returned as an empty document and
// logged at WARN. Any backend failure aborts the read with no partial
// results.
func (c Cursor) ToArray(ctx context.Context) (docs []doc.M, err error) {
	start := time.Now()
	defer func() { c.coll.metrics.observe(opFind, start, err) }()

	sel, err := queryir.ParseSelect(c.filter, c.projection, c.sort, c.limit)
	if err != nil {
		return nil, err
	}
	query, args, err := c.coll.compiler.Compile(sel)
	if err != nil {
		return nil, err
	}
	c.coll.logStatement(ctx, opFind, query, args)

	rows, err := c.coll.backend.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	docs = []doc.M{}
	for rows.Next() {
		var text sql.NullString
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, project(c.coll.decodeRow(ctx, text), sel.Projection))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	return docs, nil
}

// ToArrayAsync runs ToArray in the background. Every callback receives the
// same outcome as the returned future.
func (c Cursor) ToArrayAsync(ctx context.Context, callbacks ...Callback[[]doc.M]) *Future[[]doc.M] {
	return Async(ctx, c.ToArray, callbacks...)
}

// decodeRow degrades an undecodable row to an empty document.
func (c *Collection) decodeRow(ctx context.Context, text sql.NullString) doc.M {
	if !text.Valid {
		c.logger.WarnContext(ctx, "stored document is NULL, returning empty document",
			"table", c.backend.Table(),
		)
		c.metrics.degradedRow()
		return doc.M{}
	}

	m, err := doc.Decode(text.String)
	if err != nil {
		c.logger.WarnContext(ctx, "stored document is not valid JSON, returning empty document",
			"table", c.backend.Table(),
			"error", err,
		)
		c.metrics.degradedRow()
		return doc.M{}
	}
	return m
}

// project keeps the listed top-level fields that exist in m.
// A nil field list keeps the whole document.
func project(m doc.M, fields []string) doc.M {
	if fields == nil {
		return m
	}
	out := make(doc.M, len(fields))
	for _, f := range fields {
		if v, ok := m[f]; ok {
			out[f] = v
		}
	}
	return out
}
