// Command ledgerctl operates the back office from the command line: schema
// migration, connectivity checks, client imports, reports and tokens.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/viniciusnovato/finance-sub000/internal/config"
	"github.com/viniciusnovato/finance-sub000/internal/handlers"
	"github.com/viniciusnovato/finance-sub000/internal/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operate the contract ledger back office",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return utils.InitLogger(logLevel)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			utils.Sync()
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		newMigrateCmd(),
		newCheckCmd(),
		newImportClientsCmd(),
		newReportCmd(),
		newNotifyOverdueCmd(),
		newTokenCmd(),
	)
	return root
}

// loadBackend reads configuration and connects to the database.
func loadBackend(ctx context.Context) (*config.Config, *handlers.Backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasDatabase() {
		return nil, nil, fmt.Errorf("no database configured: set DATABASE_URL or DB_PASSWORD")
	}

	backend, err := handlers.NewBackend(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, backend, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
