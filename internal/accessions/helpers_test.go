package accessions

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"accessionreport/internal/infra/persistence/sqlite"
	"accessionreport/internal/schema"
	"accessionreport/pkg/sqlquery"
)

var fixedNow = time.Date(2024, time.May, 1, 12, 30, 45, 0, time.Local)

// seededDB returns an in-memory database holding the demo data set.
func seededDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, schema.Apply(ctx, db, sqlquery.SQLite))
	require.NoError(t, schema.Seed(ctx, db))
	return db
}

func newReport(db *sql.DB) Report {
	return Report{
		DB: db,
		Composer: Composer{
			Dialect:   sqlquery.SQLite,
			Enums:     SQLEnums{DB: db, Dialect: sqlquery.SQLite},
			Enrichers: DefaultEnrichers(db, sqlquery.SQLite),
		},
		Resolver: Resolver{Now: func() time.Time { return fixedNow }},
	}
}

func identifiers(rows []Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r[ColumnIdentifier].(string))
	}
	return out
}
