package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/jsondb/internal/record"
)

// createTestEngine opens an engine on a fresh database file with tables
// created.
func createTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	e, err := Open(context.Background(), dbPath, opts)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	require.NoError(t, e.CreateTables(context.Background()))
	return e
}

func mustSet(t *testing.T, e *Engine, p, doc string) {
	t.Helper()
	require.NoError(t, e.Set(context.Background(), p, strings.NewReader(doc)))
}

// mustGet returns the document at p, or "" when nothing is stored.
func mustGet(t *testing.T, e *Engine, p string, opts record.GetOptions) string {
	t.Helper()
	doc, ok, err := e.Get(context.Background(), p, opts)
	require.NoError(t, err)
	if !ok {
		return ""
	}
	return string(doc)
}

// rowCount returns the number of stored rows.
func rowCount(t *testing.T, e *Engine) int {
	t.Helper()
	var n int
	require.NoError(t, e.DB().QueryRow("SELECT COUNT(*) FROM jsondb").Scan(&n))
	return n
}
