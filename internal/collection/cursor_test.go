package collection

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docsql/internal/doc"
	"github.com/roach88/docsql/internal/queryir"
	"github.com/roach88/docsql/internal/testutil"
)

func TestFind_EqualityIsStringCoerced(t *testing.T) {
	c, _ := newTestCollection(t)
	seed(t, c,
		doc.M{"v": 5},        // doc-1
		doc.M{"v": "5"},      // doc-2
		doc.M{"v": 5.5},      // doc-3
		doc.M{"v": true},     // doc-4
		doc.M{"v": "true"},   // doc-5
		doc.M{"other": 5},    // doc-6
		doc.M{"v": doc.M{}},  // doc-7
		doc.M{"v": []any{5}}, // doc-8
	)

	tests := []struct {
		name   string
		filter doc.M
		want   []string
	}{
		{"int matches int and string", doc.M{"v": 5}, []string{"doc-1", "doc-2"}},
		{"string matches int and string", doc.M{"v": "5"}, []string{"doc-1", "doc-2"}},
		{"integral float matches int", doc.M{"v": 5.0}, []string{"doc-1", "doc-2"}},
		{"fractional float", doc.M{"v": 5.5}, []string{"doc-3"}},
		{"bool matches bool and string", doc.M{"v": true}, []string{"doc-4", "doc-5"}},
		{"no match", doc.M{"v": "nope"}, []string{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ids(findAll(t, c.Find(tc.filter, nil)))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFind_EmptyFilterMatchesAll(t *testing.T) {
	c, _ := newTestCollection(t)
	seed(t, c, doc.M{"a": 1}, doc.M{"b": 2})

	assert.Len(t, findAll(t, c.Find(nil, nil)), 2)
	assert.Len(t, findAll(t, c.Find(doc.M{}, nil)), 2)
}

func TestFind_EmptyCollectionReturnsEmptySlice(t *testing.T) {
	c, _ := newTestCollection(t)

	got := findAll(t, c.Find(nil, nil))
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFind_NestedField(t *testing.T) {
	c, _ := newTestCollection(t)
	seed(t, c,
		doc.M{"address": doc.M{"city": "Oslo"}},
		doc.M{"address": doc.M{"city": "Bergen"}},
	)

	assert.Equal(t, []string{"doc-2"}, ids(findAll(t, c.Find(doc.M{"address.city": "Bergen"}, nil))))
}

func TestFind_InOperator(t *testing.T) {
	c, _ := newTestCollection(t)
	seed(t, c, doc.M{"s": "a"}, doc.M{"s": 1}, doc.M{"s": "c"})

	assert.Equal(t, []string{"doc-1", "doc-2"}, ids(findAll(t, c.Find(doc.M{"s": doc.M{"$in": []any{"a", 1}}}, nil))))

	// An empty list matches nothing regardless of stored content
	assert.Empty(t, findAll(t, c.Find(doc.M{"s": doc.M{"$in": []any{}}}, nil)))
}

func TestFind_RangeOperators(t *testing.T) {
	c, _ := newTestCollection(t)
	seed(t, c, doc.M{"age": 20}, doc.M{"age": 30}, doc.M{"age": 40}, doc.M{"name": "no age"})

	assert.Equal(t, []string{"doc-1", "doc-2"}, ids(findAll(t, c.Find(doc.M{"age": doc.M{"$lte": 30}}, nil))))
	assert.Equal(t, []string{"doc-2", "doc-3"}, ids(findAll(t, c.Find(doc.M{"age": doc.M{"$gte": 30}}, nil))))

	// Implicit AND of two range clauses on different keys
	between := doc.D{
		{Key: "$and", Value: []any{
			doc.M{"age": doc.M{"$gte": 25}},
			doc.M{"age": doc.M{"$lte": 35}},
		}},
	}
	assert.Equal(t, []string{"doc-2"}, ids(findAll(t, c.Find(between, nil))))
}

func TestFind_NullMatchesMissingOrNull(t *testing.T) {
	c, _ := newTestCollection(t)
	seed(t, c, doc.M{"x": nil}, doc.M{"y": 1}, doc.M{"x": 0}, doc.M{"x": ""})

	assert.Equal(t, []string{"doc-1", "doc-2"}, ids(findAll(t, c.Find(doc.M{"x": nil}, nil))))
}

func TestFind_BooleanCombinators(t *testing.T) {
	c, _ := newTestCollection(t)
	seed(t, c,
		doc.M{"l": 1, "r": 0}, // doc-1: only left
		doc.M{"l": 0, "r": 1}, // doc-2: only right
		doc.M{"l": 1, "r": 1}, // doc-3: both
		doc.M{"l": 0, "r": 0}, // doc-4: neither
	)

	or := doc.M{"$or": []any{doc.M{"l": 1}, doc.M{"r": 1}}}
	and := doc.M{"$and": []any{doc.M{"l": 1}, doc.M{"r": 1}}}

	assert.Equal(t, []string{"doc-1", "doc-2", "doc-3"}, ids(findAll(t, c.Find(or, nil))))
	assert.Equal(t, []string{"doc-3"}, ids(findAll(t, c.Find(and, nil))))

	// Empty lists: $or matches nothing, $and matches everything
	assert.Empty(t, findAll(t, c.Find(doc.M{"$or": []any{}}, nil)))
	assert.Len(t, findAll(t, c.Find(doc.M{"$and": []any{}}, nil)), 4)
}

func TestFind_MultiKeySort(t *testing.T) {
	c, _ := newTestCollection(t)
	seed(t, c,
		doc.M{"x": 1, "y": 2}, // doc-1
		doc.M{"x": 1, "y": 1}, // doc-2
		doc.M{"x": 0, "y": 5}, // doc-3
	)

	order := func(docs []doc.M) []string {
		out := make([]string, len(docs))
		for i, d := range docs {
			out[i] = d["_id"].(string)
		}
		return out
	}

	asc := findAll(t, c.Find(nil, nil).Sort(doc.D{{Key: "x", Value: 1}, {Key: "y", Value: -1}}))
	assert.Equal(t, []string{"doc-3", "doc-1", "doc-2"}, order(asc))

	desc := findAll(t, c.Find(nil, nil).Sort(doc.D{{Key: "x", Value: -1}, {Key: "y", Value: 1}}))
	assert.Equal(t, []string{"doc-2", "doc-1", "doc-3"}, order(desc))
}

func TestFind_SortRejectsUnorderedMultiKey(t *testing.T) {
	c, _ := newTestCollection(t)

	_, err := c.Find(nil, nil).Sort(doc.M{"x": 1, "y": 1}).ToArray(context.Background())
	assert.True(t, queryir.HasCode(err, queryir.ErrCodeInvalidSort))
}

func TestFind_Limit(t *testing.T) {
	c, _ := newTestCollection(t)
	seed(t, c, doc.M{"n": 1}, doc.M{"n": 2}, doc.M{"n": 3})
	sorted := c.Find(nil, nil).Sort(doc.M{"n": 1})

	got := findAll(t, sorted.Limit(2))
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0]["n"])
	assert.Equal(t, int64(2), got[1]["n"])

	// Zero means no limit
	assert.Len(t, findAll(t, sorted.Limit(0)), 3)

	_, err := sorted.Limit(-1).ToArray(context.Background())
	assert.True(t, queryir.HasCode(err, queryir.ErrCodeInvalidLimit))
}

func TestFind_Projection(t *testing.T) {
	c, _ := newTestCollection(t)
	seed(t, c, doc.M{"a": 1, "b": 2, "c": 3}, doc.M{"b": 4})

	got := findAll(t, c.Find(nil, doc.M{"a": 1, "b": true, "missing": 1}).Sort(doc.M{"b": 1}))
	want := []doc.M{
		{"a": int64(1), "b": int64(2)},
		{"b": int64(4)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("projection mismatch (-want +got):\n%s", diff)
	}

	// No inclusion flags: whole documents
	whole := findAll(t, c.Find(doc.M{"b": 4}, doc.M{"a": 0}))
	assert.Equal(t, []doc.M{{"_id": "doc-2", "b": int64(4)}}, whole)

	_, err := c.Find(nil, doc.M{"a.b": 1}).ToArray(context.Background())
	assert.True(t, queryir.HasCode(err, queryir.ErrCodeInvalidProjection))
}

func TestCursor_IsImmutable(t *testing.T) {
	c, _ := newTestCollection(t)
	seed(t, c, doc.M{"n": 1}, doc.M{"n": 2}, doc.M{"n": 3})

	base := c.Find(nil, nil)
	limited := base.Sort(doc.M{"n": -1}).Limit(1).Project(doc.M{"n": 1})

	assert.Len(t, findAll(t, base), 3)
	assert.Equal(t, []doc.M{{"n": int64(3)}}, findAll(t, limited))
}

func TestCursor_FindResetsSortAndLimit(t *testing.T) {
	c, _ := newTestCollection(t)
	seed(t, c, doc.M{"n": 1, "k": "x"}, doc.M{"n": 2, "k": "x"}, doc.M{"n": 3, "k": "y"})

	cur := c.Find(nil, doc.M{"n": 1}).Sort(doc.M{"n": -1}).Limit(1).Find(doc.M{"k": "x"}, nil)

	// Projection kept, limit and sort gone
	got := findAll(t, cur)
	assert.ElementsMatch(t, []doc.M{{"n": int64(1)}, {"n": int64(2)}}, got)

	// A new projection replaces the old one
	got = findAll(t, cur.Find(doc.M{"k": "y"}, doc.M{"k": 1}))
	assert.Equal(t, []doc.M{{"k": "y"}}, got)
}

func TestCursor_DegradesUndecodableRows(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	c, s := newTestCollection(t, WithLogger(logger), WithMetrics(m))
	seed(t, c, doc.M{"ok": true})
	testutil.InsertRaw(t, s, "broken", "{not json")
	testutil.InsertRaw(t, s, "array", "[1,2]")

	got := findAll(t, c.Find(nil, nil))
	require.Len(t, got, 3)
	assert.Contains(t, got, doc.M{"_id": "doc-1", "ok": true})
	assert.Contains(t, got, doc.M{})

	assert.Contains(t, buf.String(), "level=WARN")
	assert.Equal(t, 2.0, promtest.ToFloat64(m.degraded))
}

func TestCursor_UndecodableRowsDoNotAbortFieldQueries(t *testing.T) {
	c, s := newTestCollection(t)
	seed(t, c, doc.M{"a": 2}, doc.M{"a": 1})
	testutil.InsertRaw(t, s, "broken", "{not json")

	sorted := findAll(t, c.Find(nil, nil).Sort(doc.M{"a": 1}))
	require.Len(t, sorted, 3)
	// The broken row has no sort value, so it sorts first as NULL.
	assert.Equal(t, []doc.M{{}, {"_id": "doc-2", "a": int64(1)}, {"_id": "doc-1", "a": int64(2)}}, sorted)

	assert.Equal(t, []string{"doc-2"}, ids(findAll(t, c.Find(doc.M{"a": 1}, nil))))
	assert.Equal(t, []string{"doc-1"}, ids(findAll(t, c.Find(doc.M{"a": doc.M{"$gte": 2}}, nil))))
	assert.Equal(t, []string{"doc-1", "doc-2"}, ids(findAll(t, c.Find(doc.M{"a": doc.M{"$in": []any{1, 2}}}, nil))))
	assert.Empty(t, findAll(t, c.Find(doc.M{"a": nil}, nil)))
}

func TestCursor_FloatEquality(t *testing.T) {
	c, _ := newTestCollection(t)
	values := []float64{123456789.123456789, 1e21, 0.1, 2.5e-9}
	for _, v := range values {
		seed(t, c, doc.M{"f": v})
	}

	for i, v := range values {
		want := []string{fmt.Sprintf("doc-%d", i+1)}
		assert.Equal(t, want, ids(findAll(t, c.Find(doc.M{"f": v}, nil))), "equality %v", v)
		assert.Equal(t, want, ids(findAll(t, c.Find(doc.M{"f": doc.M{"$in": []any{v}}}, nil))), "$in %v", v)
	}
}

func TestCursor_TextMatchOfLiterals(t *testing.T) {
	c, _ := newTestCollection(t)
	seed(t, c, doc.M{"v": true}, doc.M{"v": nil}, doc.M{"v": "true"}, doc.M{"v": int64(7)})

	assert.Equal(t, []string{"doc-1", "doc-3"}, ids(findAll(t, c.Find(doc.M{"v": true}, nil))))
	assert.Equal(t, []string{"doc-4"}, ids(findAll(t, c.Find(doc.M{"v": "7"}, nil))))
	assert.Empty(t, findAll(t, c.Find(doc.M{"v": "null"}, nil)))
	assert.Equal(t, []string{"doc-2"}, ids(findAll(t, c.Find(doc.M{"v": nil}, nil))))
}

func TestCursor_Explain(t *testing.T) {
	c, _ := newTestCollection(t)

	sql, params, err := c.Find(doc.M{"_id": "k"}, nil).Limit(1).Explain()
	require.NoError(t, err)
	assert.Equal(t, "SELECT doc FROM documents WHERE (_id = ?) LIMIT 1", sql)
	assert.Equal(t, []any{"k"}, params)
}

func TestCursor_ToArrayAsync(t *testing.T) {
	c, _ := newTestCollection(t)
	seed(t, c, doc.M{"a": 1})

	var fromCallback []doc.M
	var callbackErr error
	future := c.Find(nil, nil).ToArrayAsync(context.Background(), func(docs []doc.M, err error) {
		fromCallback, callbackErr = docs, err
	})

	docs, err := future.Await(context.Background())
	require.NoError(t, err)
	require.NoError(t, callbackErr)
	assert.Equal(t, docs, fromCallback)
	assert.Len(t, docs, 1)
}

func TestCursor_ToArrayAsyncError(t *testing.T) {
	c, _ := newTestCollection(t)

	var callbackErr error
	future := c.Find(doc.M{"$bad": 1}, nil).ToArrayAsync(context.Background(), func(_ []doc.M, err error) {
		callbackErr = err
	})

	_, err := future.Await(context.Background())
	require.Error(t, err)
	assert.Equal(t, err, callbackErr)
}
