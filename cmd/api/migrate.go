package main

import (
	"fmt"

	"todoapi/internal/app"
	"todoapi/internal/migrations"

	"github.com/juju/clock"
	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var statusOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect database schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			store, err := app.OpenStore(cmd.Context(), cfg.Store, clock.WallClock)
			if err != nil {
				return err
			}
			defer store.Close()

			if statusOnly {
				current, pending, err := migrations.Status(cmd.Context(), store.DB, store.Dialect)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Current version: %d\n", current)
				if pending {
					fmt.Fprintln(cmd.OutOrStdout(), "Pending migrations: yes")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "No pending migrations.")
				}
				return nil
			}

			v, err := migrations.Up(cmd.Context(), store.DB, store.Dialect)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrations applied, schema version %d.\n", v)
			return nil
		},
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "show the schema version without applying")
	return cmd
}
