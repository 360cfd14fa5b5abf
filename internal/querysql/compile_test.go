package querysql

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/roach88/docsql/internal/doc"
	"github.com/roach88/docsql/internal/queryir"
)

const table = "documents"

func renderStatement(t *testing.T, sql string, params []any) []byte {
	t.Helper()
	encoded, err := json.Marshal(append([]any{}, params...))
	require.NoError(t, err)
	return []byte(sql + "\n" + string(encoded) + "\n")
}

func mustSelect(t *testing.T, filter, projection, sort any, limit int64) queryir.Select {
	t.Helper()
	sel, err := queryir.ParseSelect(filter, projection, sort, limit)
	require.NoError(t, err)
	return sel
}

func mustFilter(t *testing.T, filter any) queryir.Predicate {
	t.Helper()
	pred, err := queryir.ParseFilter(filter)
	require.NoError(t, err)
	return pred
}

func TestCompile_GoldenSQL(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	rangeFilter := doc.D{
		{Key: "status", Value: "active"},
		{Key: "age", Value: doc.M{"$gte": 18}},
	}
	orFilter := doc.D{
		{Key: "$or", Value: []any{
			doc.D{{Key: "_id", Value: "a"}},
			doc.D{{Key: "tags", Value: doc.M{"$in": []any{"x", 1}}}},
		}},
		{Key: "gone", Value: nil},
	}
	setB := []queryir.SetField{{Field: "b", Value: "y", JSON: `"y"`}}

	tests := []struct {
		name    string
		dialect Dialect
		query   queryir.Query
	}{
		{
			name:    "sqlite_select_all",
			dialect: SQLite{},
			query:   mustSelect(t, nil, nil, nil, 0),
		},
		{
			name:    "sqlite_select_sorted",
			dialect: SQLite{},
			query:   mustSelect(t, rangeFilter, doc.M{"status": 1}, doc.D{{Key: "age", Value: -1}}, 10),
		},
		{
			name:    "mysql_select_sorted",
			dialect: MySQL{},
			query:   mustSelect(t, rangeFilter, nil, doc.D{{Key: "age", Value: -1}}, 10),
		},
		{
			name:    "sqlite_select_or",
			dialect: SQLite{},
			query:   mustSelect(t, orFilter, nil, nil, 0),
		},
		{
			name:    "mysql_select_or",
			dialect: MySQL{},
			query:   mustSelect(t, orFilter, nil, nil, 0),
		},
		{
			name:    "sqlite_insert",
			dialect: SQLite{},
			query:   queryir.Insert{ID: "k", Document: `{"_id":"k"}`},
		},
		{
			name:    "sqlite_update_one",
			dialect: SQLite{},
			query:   queryir.Update{Filter: mustFilter(t, doc.M{"a": 1}), Set: setB, Single: true},
		},
		{
			name:    "mysql_update_one",
			dialect: MySQL{},
			query:   queryir.Update{Filter: mustFilter(t, doc.M{"a": 1}), Set: setB, Single: true},
		},
		{
			name:    "mysql_update_many",
			dialect: MySQL{},
			query: queryir.Update{
				Filter: mustFilter(t, doc.M{"n": doc.M{"$lte": 5}}),
				Set: []queryir.SetField{
					{Field: "x.y", Value: 1, JSON: "1"},
					{Field: "z", Value: nil, JSON: "null"},
				},
			},
		},
		{
			name:    "sqlite_delete_many",
			dialect: SQLite{},
			query:   queryir.Delete{Filter: mustFilter(t, nil)},
		},
		{
			name:    "sqlite_delete_one",
			dialect: SQLite{},
			query:   queryir.Delete{Filter: mustFilter(t, doc.M{"_id": "k"}), Single: true},
		},
		{
			name:    "mysql_delete_one",
			dialect: MySQL{},
			query:   queryir.Delete{Filter: mustFilter(t, doc.M{"_id": "k"}), Single: true},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sql, params, err := NewSQLCompiler(tc.dialect, table).Compile(tc.query)
			require.NoError(t, err)
			g.Assert(t, tc.name, renderStatement(t, sql, params))
		})
	}
}

func TestCompile_NoStringInterpolation(t *testing.T) {
	malicious := "'; DROP TABLE documents; --"
	sel := mustSelect(t, doc.M{"name": malicious, "_id": malicious}, nil, nil, 0)

	for _, d := range []Dialect{SQLite{}, MySQL{}} {
		sql, params, err := NewSQLCompiler(d, table).Compile(sel)
		require.NoError(t, err)
		assert.NotContains(t, sql, "DROP TABLE")
		assert.Equal(t, []any{malicious, malicious}, params)
	}
}

func TestCompile_SelectPointer(t *testing.T) {
	sel := mustSelect(t, doc.M{"a": "b"}, nil, nil, 0)

	sql, params, err := NewSQLCompiler(SQLite{}, table).Compile(&sel)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sql, "SELECT doc FROM documents WHERE"))
	assert.Equal(t, []any{"b"}, params)
}

func TestCompile_NoOrderByWithoutSort(t *testing.T) {
	sql, _, err := NewSQLCompiler(SQLite{}, table).Compile(mustSelect(t, nil, nil, nil, 3))
	require.NoError(t, err)
	assert.NotContains(t, sql, "ORDER BY")
	assert.True(t, strings.HasSuffix(sql, " LIMIT 3"))
}

func TestCompile_SortKeysInOrder(t *testing.T) {
	sel := mustSelect(t, nil, nil, doc.D{{Key: "b", Value: 1}, {Key: "a", Value: -1}}, 0)

	sql, _, err := NewSQLCompiler(SQLite{}, table).Compile(sel)
	require.NoError(t, err)
	assert.Contains(t, sql, `ORDER BY CASE WHEN json_valid(doc) THEN json_extract(doc, '$."b"') END ASC, `+
		`CASE WHEN json_valid(doc) THEN json_extract(doc, '$."a"') END DESC, _id ASC`)
}

func TestCompile_EmptyListPolicies(t *testing.T) {
	c := NewSQLCompiler(SQLite{}, table)

	tests := []struct {
		name string
		pred queryir.Predicate
		want string
	}{
		{"empty and is true", queryir.And{}, "(1=1)"},
		{"nil filter is true", nil, "(1=1)"},
		{"empty or is false", queryir.Or{}, "(1=0)"},
		{"empty in is false", queryir.In{Field: "a"}, "(1=0)"},
		{"empty in inside and", queryir.And{Predicates: []queryir.Predicate{&queryir.In{Field: "a", Values: []string{}}}}, "((1=0))"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sql, params, err := c.CompilePredicate(tc.pred)
			require.NoError(t, err)
			assert.Equal(t, tc.want, sql)
			assert.Empty(t, params)
		})
	}
}

func TestCompile_UpdateWithoutFields(t *testing.T) {
	_, _, err := NewSQLCompiler(SQLite{}, table).Compile(queryir.Update{Filter: queryir.And{}})
	assert.Error(t, err)
}

func TestCompile_NilQuery(t *testing.T) {
	_, _, err := NewSQLCompiler(SQLite{}, table).Compile(nil)
	assert.Error(t, err)
}

func TestCompile_InvalidTable(t *testing.T) {
	_, _, err := NewSQLCompiler(SQLite{}, "docs; DROP").Compile(queryir.Select{})
	assert.Error(t, err)
}

func TestValidateTable(t *testing.T) {
	assert.NoError(t, ValidateTable("documents"))
	assert.NoError(t, ValidateTable("_users2"))
	assert.Error(t, ValidateTable(""))
	assert.Error(t, ValidateTable("2docs"))
	assert.Error(t, ValidateTable("my-docs"))
	assert.Error(t, ValidateTable("`docs`"))
}

func TestDialectFor(t *testing.T) {
	d, err := DialectFor("mysql")
	require.NoError(t, err)
	assert.Equal(t, "mysql", d.Name())
	assert.True(t, d.NativeLimit())

	d, err = DialectFor("sqlite3")
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", d.Name())
	assert.False(t, d.NativeLimit())

	_, err = DialectFor("postgres")
	assert.Error(t, err)
}

func TestDialect_CreateTable(t *testing.T) {
	assert.Equal(t,
		"CREATE TABLE IF NOT EXISTS documents (_id VARCHAR(128) NOT NULL PRIMARY KEY, doc TEXT NOT NULL)",
		SQLite{}.CreateTable("documents"))
	assert.Equal(t,
		"CREATE TABLE IF NOT EXISTS documents (_id VARCHAR(128) NOT NULL PRIMARY KEY, doc LONGTEXT NOT NULL)",
		MySQL{}.CreateTable("documents"))
}

var propertyFields = []string{"a", "b.c", "status", "x_y.z"}

func drawPredicate(t *rapid.T, depth int) queryir.Predicate {
	maxKind := 7
	if depth >= 3 {
		maxKind = 5
	}
	field := rapid.SampledFrom(propertyFields).Draw(t, "field")

	switch rapid.IntRange(0, maxKind).Draw(t, "kind") {
	case 0:
		return queryir.IDEquals{ID: rapid.String().Draw(t, "id")}
	case 1:
		text := rapid.String().Draw(t, "text")
		return queryir.Equals{Field: field, Value: text, Text: text}
	case 2:
		return queryir.In{Field: field, Values: rapid.SliceOfN(rapid.String(), 0, 4).Draw(t, "values")}
	case 3:
		return queryir.Lte{Field: field, Value: rapid.Int64().Draw(t, "lte")}
	case 4:
		return queryir.Gte{Field: field, Value: rapid.Float64().Draw(t, "gte")}
	case 5:
		return queryir.IsNull{Field: field}
	case 6:
		return queryir.And{Predicates: drawChildren(t, depth)}
	default:
		return queryir.Or{Predicates: drawChildren(t, depth)}
	}
}

func drawChildren(t *rapid.T, depth int) []queryir.Predicate {
	n := rapid.IntRange(0, 3).Draw(t, "children")
	children := make([]queryir.Predicate, n)
	for i := range children {
		children[i] = drawPredicate(t, depth+1)
	}
	return children
}

func TestCompile_PlaceholderParityProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pred := drawPredicate(t, 0)
		d := rapid.SampledFrom([]Dialect{SQLite{}, MySQL{}}).Draw(t, "dialect")
		single := rapid.Bool().Draw(t, "single")
		c := NewSQLCompiler(d, table)

		queries := []queryir.Query{
			queryir.Select{Filter: pred, Limit: 1},
			queryir.Delete{Filter: pred, Single: single},
			queryir.Update{Filter: pred, Single: single, Set: []queryir.SetField{{Field: "f", JSON: "1"}}},
		}
		for _, q := range queries {
			sql, params, err := c.Compile(q)
			if err != nil {
				t.Fatalf("compile %T: %v", q, err)
			}
			if got := strings.Count(sql, "?"); got != len(params) {
				t.Fatalf("%s: %d placeholders, %d params", sql, got, len(params))
			}
		}
	})
}
