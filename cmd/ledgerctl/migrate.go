package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the back office tables if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, backend, err := loadBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer backend.Close()

			if err := backend.DB.Migrate(cmd.Context()); err != nil {
				return err
			}

			counts, err := backend.DB.TableCounts(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
			return printJSON(cmd.OutOrStdout(), counts)
		},
	}
}
