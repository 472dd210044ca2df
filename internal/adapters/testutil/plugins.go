// Package testutil wires a report service over the demo database for adapter
// tests, keeping plugin imports out of the adapter package itself.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"accessionreport/internal/core"
	"accessionreport/internal/infra/persistence/sqlite"
	"accessionreport/internal/schema"
	"accessionreport/pkg/datasetapi"
	"accessionreport/pkg/sqlquery"
	"accessionreport/plugins/bhl"
)

// ReportSlug addresses the accessions report installed by NewReportService.
const ReportSlug = "bhl/accessions@1.0.0"

// DemoDatabase opens an in-memory database holding the demo data set.
func DemoDatabase(ctx context.Context) (*sql.DB, error) {
	db, err := sqlite.Open(ctx, ":memory:")
	if err != nil {
		return nil, err
	}
	if err := schema.Apply(ctx, db, sqlquery.SQLite); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := schema.Seed(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewReportService returns a service over db with the bhl plugin installed.
// The clock is fixed so default date bounds are stable.
func NewReportService(db *sql.DB, logger *zap.Logger) (*core.Service, error) {
	now := func() time.Time { return time.Date(2024, time.May, 1, 12, 0, 0, 0, time.Local) }
	svc := core.NewService(datasetapi.Environment{DB: db, Dialect: sqlquery.SQLite},
		core.WithLogger(logger), core.WithClock(now))
	if _, err := svc.InstallPlugin(bhl.New()); err != nil {
		return nil, fmt.Errorf("install bhl plugin: %w", err)
	}
	return svc, nil
}
