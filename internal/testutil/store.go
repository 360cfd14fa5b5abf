package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/docsql/internal/store"
)

// NewSQLiteStore opens a store on a fresh SQLite file in t.TempDir().
// The store is closed when the test finishes.
func NewSQLiteStore(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), store.Config{
		Driver: "sqlite3",
		DSN:    filepath.Join(t.TempDir(), "docs.db"),
	})
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// InsertRaw writes a row without going through a collection, e.g. to plant
// a document that is not valid JSON.
func InsertRaw(t testing.TB, s *store.Store, id, text string) {
	t.Helper()
	if _, err := s.Exec(context.Background(),
		"INSERT INTO "+s.Table()+" (_id, doc) VALUES (?, ?)", id, text); err != nil {
		t.Fatalf("insert raw row: %v", err)
	}
}
