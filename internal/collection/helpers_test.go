package collection

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/docsql/internal/doc"
	"github.com/roach88/docsql/internal/store"
	"github.com/roach88/docsql/internal/testutil"
)

// newTestCollection creates a collection over a fresh SQLite store with
// sequential ids "doc-1", "doc-2", ...
func newTestCollection(t *testing.T, opts ...Option) (*Collection, *store.Store) {
	t.Helper()
	s := testutil.NewSQLiteStore(t)
	opts = append([]Option{WithIDGenerator(testutil.NewSequentialIDs("doc"))}, opts...)
	return New(s, opts...), s
}

// seed inserts documents in order.
func seed(t *testing.T, c *Collection, docs ...doc.M) {
	t.Helper()
	for _, d := range docs {
		_, err := c.InsertOne(context.Background(), d)
		require.NoError(t, err)
	}
}

// findAll executes a cursor and fails the test on error.
func findAll(t *testing.T, cur Cursor) []doc.M {
	t.Helper()
	docs, err := cur.ToArray(context.Background())
	require.NoError(t, err)
	return docs
}

// ids returns the sorted _id values of docs.
func ids(docs []doc.M) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		id, _ := d[doc.IDField].(string)
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
