package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"accessionreport/internal/infra/persistence"
	"accessionreport/internal/schema"
)

func newSchemaCmd(a *app) *cobra.Command {
	var printOnly, demo bool
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Create the accession tables in the configured database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dialect := a.cfg.Dialect()
			if printOnly {
				_, err := fmt.Fprint(cmd.OutOrStdout(), schema.For(dialect))
				return err
			}
			db, err := persistence.Open(cmd.Context(), dialect, a.cfg.DB.DSN)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			if err := schema.Apply(cmd.Context(), db, dialect); err != nil {
				return err
			}
			if demo {
				if err := schema.Seed(cmd.Context(), db); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema applied (%s)\n", dialect)
			return nil
		},
	}
	cmd.Flags().BoolVar(&printOnly, "print", false, "print the DDL instead of applying it")
	cmd.Flags().BoolVar(&demo, "demo", false, "load demonstration accessions after applying")
	return cmd
}
