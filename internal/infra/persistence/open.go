// Package persistence selects the database backing accession reports.
package persistence

import (
	"context"
	"database/sql"

	"accessionreport/internal/infra/persistence/postgres"
	"accessionreport/internal/infra/persistence/sqlite"
	"accessionreport/pkg/sqlquery"
)

// Open connects to the database for dialect using dsn.
func Open(ctx context.Context, dialect sqlquery.Dialect, dsn string) (*sql.DB, error) {
	if dialect == sqlquery.Postgres {
		return postgres.Open(ctx, dsn)
	}
	return sqlite.Open(ctx, dsn)
}
