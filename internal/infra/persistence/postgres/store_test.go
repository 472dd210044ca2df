package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"accessionreport/internal/infra/persistence/postgres/testutil"
)

func TestOpenUsesDefaultDSNAndPgxDriver(t *testing.T) {
	stub, _ := testutil.NewStubDB()
	var gotDriver, gotDSN string
	restore := OverrideSQLOpen(func(driverName, dsn string) (*sql.DB, error) {
		gotDriver, gotDSN = driverName, dsn
		return stub, nil
	})
	defer restore()

	db, err := Open(context.Background(), "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if db != stub {
		t.Fatal("expected stub handle")
	}
	if gotDriver != "pgx" || gotDSN != defaultDSN {
		t.Fatalf("unexpected driver/dsn: %s %s", gotDriver, gotDSN)
	}
}

func TestOpenWrapsErrors(t *testing.T) {
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) {
		return nil, errors.New("boom")
	})
	_, err := Open(context.Background(), "postgres://x")
	restore()
	if err == nil || !strings.Contains(err.Error(), "open postgres") {
		t.Fatalf("expected open error, got %v", err)
	}

	stub, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore = OverrideSQLOpen(func(string, string) (*sql.DB, error) { return stub, nil })
	defer restore()
	if _, err := Open(context.Background(), "postgres://x"); err == nil || !strings.Contains(err.Error(), "ping postgres") {
		t.Fatalf("expected ping error, got %v", err)
	}
}

func TestReadOnlyTx(t *testing.T) {
	db, conn := testutil.NewStubDB()
	tx, err := ReadOnlyTx(context.Background(), db)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	_ = tx.Rollback()
	if len(conn.ReadOnly) != 1 || !conn.ReadOnly[0] {
		t.Fatalf("expected read-only tx, got %v", conn.ReadOnly)
	}

	conn.FailTx = true
	if _, err := ReadOnlyTx(context.Background(), db); err == nil {
		t.Fatal("expected begin failure")
	}
}
