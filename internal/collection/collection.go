package collection

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/docsql/internal/doc"
	"github.com/roach88/docsql/internal/queryir"
	"github.com/roach88/docsql/internal/querysql"
)

// Operation names used in logs and metrics.
const (
	opFind       = "find"
	opInsertOne  = "insert_one"
	opDeleteOne  = "delete_one"
	opDeleteMany = "delete_many"
	opUpdateOne  = "update_one"
	opUpdateMany = "update_many"
)

// Backend executes statements against one document table.
// Implemented by *store.Store.
type Backend interface {
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Dialect() querysql.Dialect
	Table() string
}

// Collection exposes the document query API over a Backend.
//
// Thread-safety: a Collection holds no mutable state after construction and
// is safe for concurrent use. Operations are not serialized against each
// other; single-document atomicity comes from LIMIT-1 statements and the
// engine's row locking.
type Collection struct {
	backend  Backend
	compiler *querysql.SQLCompiler
	ids      IDGenerator
	logger   *slog.Logger
	metrics  *Metrics
}

// Option configures a Collection.
type Option func(*Collection)

// WithIDGenerator sets the generator used for inserts without an _id.
//
// Default: UUIDGenerator
func WithIDGenerator(g IDGenerator) Option {
	return func(c *Collection) {
		c.ids = g
	}
}

// WithLogger sets the logger. Statements are logged at DEBUG, degraded rows
// at WARN.
//
// Default: slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(c *Collection) {
		c.logger = l
	}
}

// WithMetrics records operation metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Collection) {
		c.metrics = m
	}
}

// New creates a Collection over b.
func New(b Backend, opts ...Option) *Collection {
	c := &Collection{
		backend:  b,
		compiler: querysql.NewSQLCompiler(b.Dialect(), b.Table()),
		ids:      UUIDGenerator{},
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// InsertOneResult reports the id of an inserted document.
type InsertOneResult struct {
	InsertedID string `json:"insertedId" yaml:"insertedId"`
}

// DeleteResult reports how many documents a delete removed.
type DeleteResult struct {
	DeletedCount int64 `json:"deletedCount" yaml:"deletedCount"`
}

// UpdateResult reports the outcome of an update.
//
// ModifiedCount always equals MatchedCount: a matched document counts as
// modified even when $set wrote the values it already had. An upsert that
// inserted reports zero for both and sets UpsertedID.
type UpdateResult struct {
	MatchedCount  int64  `json:"matchedCount" yaml:"matchedCount"`
	ModifiedCount int64  `json:"modifiedCount" yaml:"modifiedCount"`
	UpsertedID    string `json:"upsertedId,omitempty" yaml:"upsertedId,omitempty"`
}

// UpdateOptions modifies UpdateOne and UpdateMany.
type UpdateOptions struct {
	// Upsert inserts a document built from the filter's equality fields and
	// the $set fields when nothing matches.
	Upsert bool
}

// Find returns a cursor over the documents matching filter.
//
// filter and projection accept doc.M, doc.D or map[string]any; nil means
// "everything" and "whole documents" respectively. Nothing is executed until
// ToArray.
func (c *Collection) Find(filter, projection any) Cursor {
	return Cursor{coll: c, filter: filter, projection: projection}
}

// InsertOne stores a copy of document.
//
// An absent or empty _id is replaced with a generated one. A non-string _id
// is rejected with an INVALID_ID ParseError. Inserting an existing _id fails
// with the backend's duplicate-key error (see store.IsDuplicateKey).
func (c *Collection) InsertOne(ctx context.Context, document any) (res InsertOneResult, err error) {
	start := time.Now()
	defer func() { c.metrics.observe(opInsertOne, start, err) }()

	return c.insert(ctx, opInsertOne, document)
}

func (c *Collection) insert(ctx context.Context, op string, document any) (InsertOneResult, error) {
	entries, ok := doc.Entries(document)
	if !ok || document == nil {
		return InsertOneResult{}, &queryir.ParseError{
			Code:    queryir.ErrCodeInvalidFilter,
			Message: fmt.Sprintf("document must be a document, got %T", document),
		}
	}

	m := make(doc.M, len(entries)+1)
	for _, e := range entries {
		m[e.Key] = e.Value
	}

	var id string
	switch v := m[doc.IDField].(type) {
	case nil:
		id = c.ids.Generate()
	case string:
		id = v
		if id == "" {
			id = c.ids.Generate()
		}
	default:
		return InsertOneResult{}, &queryir.ParseError{
			Code:    queryir.ErrCodeInvalidID,
			Path:    doc.IDField,
			Message: fmt.Sprintf("_id must be a string, got %T", v),
		}
	}
	m[doc.IDField] = id

	text, err := doc.Encode(m)
	if err != nil {
		return InsertOneResult{}, err
	}

	if _, err := c.exec(ctx, op, queryir.Insert{ID: id, Document: text}); err != nil {
		return InsertOneResult{}, fmt.Errorf("insert document: %w", err)
	}
	return InsertOneResult{InsertedID: id}, nil
}

// DeleteOne removes at most one document matching filter.
func (c *Collection) DeleteOne(ctx context.Context, filter any) (res DeleteResult, err error) {
	start := time.Now()
	defer func() { c.metrics.observe(opDeleteOne, start, err) }()

	return c.delete(ctx, opDeleteOne, filter, true)
}

// DeleteMany removes every document matching filter.
func (c *Collection) DeleteMany(ctx context.Context, filter any) (res DeleteResult, err error) {
	start := time.Now()
	defer func() { c.metrics.observe(opDeleteMany, start, err) }()

	return c.delete(ctx, opDeleteMany, filter, false)
}

func (c *Collection) delete(ctx context.Context, op string, filter any, single bool) (DeleteResult, error) {
	pred, err := queryir.ParseFilter(filter)
	if err != nil {
		return DeleteResult{}, err
	}

	n, err := c.exec(ctx, op, queryir.Delete{Filter: pred, Single: single})
	if err != nil {
		return DeleteResult{}, fmt.Errorf("delete documents: %w", err)
	}
	return DeleteResult{DeletedCount: n}, nil
}

// UpdateOne applies update to at most one document matching filter.
//
// Only the {$set: {...}} form is supported; an update without a non-empty
// $set document changes nothing and reports zero counts.
func (c *Collection) UpdateOne(ctx context.Context, filter, update any, opts ...UpdateOptions) (res UpdateResult, err error) {
	start := time.Now()
	defer func() { c.metrics.observe(opUpdateOne, start, err) }()

	return c.update(ctx, opUpdateOne, filter, update, true, mergeUpdateOptions(opts))
}

// UpdateMany applies update to every document matching filter.
func (c *Collection) UpdateMany(ctx context.Context, filter, update any, opts ...UpdateOptions) (res UpdateResult, err error) {
	start := time.Now()
	defer func() { c.metrics.observe(opUpdateMany, start, err) }()

	return c.update(ctx, opUpdateMany, filter, update, false, mergeUpdateOptions(opts))
}

func mergeUpdateOptions(opts []UpdateOptions) UpdateOptions {
	var merged UpdateOptions
	for _, o := range opts {
		merged.Upsert = merged.Upsert || o.Upsert
	}
	return merged
}

func (c *Collection) update(ctx context.Context, op string, filter, update any, single bool, opts UpdateOptions) (UpdateResult, error) {
	set, ok, err := queryir.ParseUpdate(update)
	if err != nil {
		return UpdateResult{}, err
	}
	if !ok {
		c.logger.DebugContext(ctx, "update has no $set fields, nothing to do", "op", op)
		return UpdateResult{}, nil
	}

	pred, err := queryir.ParseFilter(filter)
	if err != nil {
		return UpdateResult{}, err
	}

	n, err := c.exec(ctx, op, queryir.Update{Filter: pred, Set: set, Single: single})
	if err != nil {
		return UpdateResult{}, fmt.Errorf("update documents: %w", err)
	}
	if n > 0 || !opts.Upsert {
		return UpdateResult{MatchedCount: n, ModifiedCount: n}, nil
	}

	// Not atomic with the update above: a concurrent upsert of the same
	// document makes one of the inserts fail with a duplicate key.
	seed, err := queryir.EqualityFields(pred)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("%w: %v", ErrUnsafeUpsert, err)
	}
	for _, f := range set {
		doc.SetPath(seed, f.Field, f.Value)
	}

	inserted, err := c.insert(ctx, op, seed)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("upsert: %w", err)
	}
	return UpdateResult{UpsertedID: inserted.InsertedID}, nil
}

// exec compiles and runs a mutation, returning the affected row count.
func (c *Collection) exec(ctx context.Context, op string, q queryir.Query) (int64, error) {
	query, args, err := c.compiler.Compile(q)
	if err != nil {
		return 0, err
	}
	c.logStatement(ctx, op, query, args)

	result, err := c.backend.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func (c *Collection) logStatement(ctx context.Context, op, query string, args []any) {
	c.logger.DebugContext(ctx, "executing statement",
		"op", op,
		"table", c.backend.Table(),
		"sql", query,
		"params", len(args),
	)
}
