package schema

import (
	"strings"
	"testing"

	"accessionreport/pkg/sqlquery"
)

func TestSplitStatements(t *testing.T) {
	stmts := SplitStatements(SQLite())
	if len(stmts) == 0 {
		t.Fatal("expected sqlite DDL to produce statements")
	}
	for _, stmt := range stmts {
		if strings.HasPrefix(strings.TrimSpace(stmt), "--") {
			t.Fatalf("statement unexpectedly starts with comment: %q", stmt)
		}
		if !strings.HasSuffix(strings.TrimSpace(stmt), ";") {
			t.Fatalf("statement missing semicolon terminator: %q", stmt)
		}
	}
}

func TestSplitStatementsKeepsUnterminatedTail(t *testing.T) {
	stmts := SplitStatements("-- header\nCREATE TABLE a (id INT);\n\nCREATE TABLE b (id INT)")
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(stmts))
	}
	if stmts[1] != "CREATE TABLE b (id INT)" {
		t.Fatalf("unexpected tail: %q", stmts[1])
	}
}

func TestBundlesCoverReportTables(t *testing.T) {
	for _, d := range []sqlquery.Dialect{sqlquery.SQLite, sqlquery.Postgres} {
		ddl := For(d)
		for _, table := range []string{"accession", "linked_agents_rlshp", "collection_management", "enumeration_value", "user_defined", "extent", "donor_detail"} {
			if !strings.Contains(ddl, "CREATE TABLE IF NOT EXISTS "+table+" (") {
				t.Fatalf("%s bundle missing table %s", d, table)
			}
		}
	}
	if strings.Contains(Postgres(), "INTEGER") {
		t.Fatal("postgres bundle should use BIGINT columns")
	}
}

func TestDemoIsInsertOnly(t *testing.T) {
	stmts := SplitStatements(Demo())
	if len(stmts) == 0 {
		t.Fatal("demo data empty")
	}
	for _, stmt := range stmts {
		if !strings.HasPrefix(stmt, "INSERT INTO ") {
			t.Fatalf("demo statement is not an insert: %q", stmt)
		}
	}
}
