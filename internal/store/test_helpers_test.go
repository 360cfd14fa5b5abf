package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/docsql/internal/querysql"
)

// createTestStore creates a new file-backed SQLite store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Config{DSN: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// insertRow inserts a raw document row.
func insertRow(t *testing.T, s *Store, id, doc string) error {
	t.Helper()
	sql, args, err := querysql.NewSQLCompiler(s.Dialect(), s.Table()).Compile(insertQuery(id, doc))
	if err != nil {
		t.Fatalf("Compile() failed: %v", err)
	}
	_, err = s.Exec(context.Background(), sql, args...)
	return err
}
