package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"parishnet/internal/platform/postgres"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt := envFrom(cmd)
			if rt.cfg.Postgres.URL == "" {
				return fmt.Errorf("PARISHNET_DATABASE_URL is required")
			}
			db, err := postgres.Open(cmd.Context(), rt.cfg.Postgres.URL, postgres.PoolConfig{MaxOpenConns: 2})
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := postgres.ApplyMigrations(cmd.Context(), db)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
				return nil
			}
			for _, v := range applied {
				fmt.Fprintln(cmd.OutOrStdout(), "applied", v)
			}
			return nil
		},
	}
}
