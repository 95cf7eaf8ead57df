package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newImportClientsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-clients <file.csv>",
		Short: "Import clients from a local CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			_, backend, err := loadBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer backend.Close()

			result, err := backend.Service.ImportClients(cmd.Context(), string(content), filepath.Base(args[0]))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}
