package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"accessionreport/internal/schema"
	"accessionreport/pkg/sqlquery"
)

func TestOpenMemoryAppliesSchema(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = db.Close() }()
	if err := schema.Apply(ctx, db, sqlquery.SQLite); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	if err := schema.Apply(ctx, db, sqlquery.SQLite); err != nil {
		t.Fatalf("schema should be idempotent: %v", err)
	}
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accession`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected empty accession table, got %d", n)
	}
}

func TestOpenFileCreatesDirectoriesAndReadOnlyRejectsWrites(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "accessions.db")
	db, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := schema.Apply(ctx, db, sqlquery.SQLite); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	_ = db.Close()

	ro, err := OpenReadOnly(ctx, path)
	if err != nil {
		t.Fatalf("open read-only: %v", err)
	}
	defer func() { _ = ro.Close() }()
	if _, err := ro.ExecContext(ctx, `INSERT INTO enumeration(id, name) VALUES (1, 'x')`); err == nil {
		t.Fatal("expected write to fail on read-only handle")
	}
}

func TestOpenReadOnlyRequiresFile(t *testing.T) {
	if _, err := OpenReadOnly(context.Background(), ":memory:"); err == nil {
		t.Fatal("expected error for memory database")
	}
	if _, err := OpenReadOnly(context.Background(), filepath.Join(t.TempDir(), "missing.db")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestOpenWrapsDriverErrors(t *testing.T) {
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) {
		return nil, errors.New("boom")
	})
	defer restore()
	if _, err := Open(context.Background(), ":memory:"); err == nil {
		t.Fatal("expected error")
	}
}
