package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"accessionreport/internal/config"
	"accessionreport/internal/core"
	"accessionreport/internal/infra/persistence"
	"accessionreport/pkg/datasetapi"
	"accessionreport/plugins/bhl"
)

// app carries state shared by subcommands once the root command has loaded
// configuration.
type app struct {
	verbose bool
	cfg     config.Config
	logger  *zap.Logger
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{logger: zap.NewNop()}
	root := &cobra.Command{
		Use:           "accession-report",
		Short:         "Accessions report for ArchivesSpace repositories",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			logger, err := cfg.Logger(a.verbose)
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.logger.Sync()
		},
	}
	root.SetOut(out)
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")
	root.AddCommand(newRunCmd(a), newServeCmd(a), newTemplatesCmd(a), newSchemaCmd(a))
	return root
}

// openService connects to the configured database and installs the report
// plugin. The caller closes the returned database.
func (a *app) openService(ctx context.Context, metrics core.MetricsRecorder) (*core.Service, *sql.DB, error) {
	dialect := a.cfg.Dialect()
	db, err := persistence.Open(ctx, dialect, a.cfg.DB.DSN)
	if err != nil {
		return nil, nil, err
	}
	svc := core.NewService(datasetapi.Environment{DB: db, Dialect: dialect},
		core.WithLogger(a.logger), core.WithMetrics(metrics))

	var opts []bhl.Option
	if a.cfg.Report.StoredFunctions {
		opts = append(opts, bhl.WithStoredFunctions(a.cfg.Report.EnumFunction))
	}
	if _, err := svc.InstallPlugin(bhl.New(opts...)); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("install report plugin: %w", err)
	}
	return svc, db, nil
}
