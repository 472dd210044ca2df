// Package schema embeds the DDL for the accession reporting tables and applies
// it to SQLite or Postgres databases.
package schema

import (
	"bufio"
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	"accessionreport/pkg/sqlquery"
)

//go:embed sqlite.sql
var sqliteDDL string

//go:embed postgres.sql
var postgresDDL string

//go:embed demo.sql
var demoData string

// SQLite returns the SQLite DDL bundle.
func SQLite() string { return sqliteDDL }

// Postgres returns the Postgres DDL bundle.
func Postgres() string { return postgresDDL }

// For returns the DDL bundle matching dialect.
func For(d sqlquery.Dialect) string {
	if d == sqlquery.Postgres {
		return postgresDDL
	}
	return sqliteDDL
}

// SplitStatements splits a semicolon-terminated DDL script into executable statements.
// It drops blank lines and single-line comments that start with "--".
func SplitStatements(ddl string) []string {
	scanner := bufio.NewScanner(strings.NewReader(ddl))
	var stmts []string
	var current strings.Builder

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			if stmt := strings.TrimSpace(current.String()); stmt != "" {
				stmts = append(stmts, stmt)
			}
			current.Reset()
		}
	}
	if tail := strings.TrimSpace(current.String()); tail != "" {
		stmts = append(stmts, tail)
	}
	return stmts
}

// Apply executes the dialect's DDL against db. Statements are idempotent.
func Apply(ctx context.Context, db *sql.DB, d sqlquery.Dialect) error {
	for _, stmt := range SplitStatements(For(d)) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}

// Demo returns the demo data set: two repositories with a handful of
// accessions, agents, enumerations and collection management records.
func Demo() string { return demoData }

// Seed loads the demo data set into an empty database. It works for both
// dialects.
func Seed(ctx context.Context, db *sql.DB) error {
	for _, stmt := range SplitStatements(demoData) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
	}
	return nil
}
