// Package cmd provides the ledgerctl commands.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/ledger-core/internal/config"
	"github.com/example/ledger-core/internal/ledger"
	"github.com/example/ledger-core/internal/store"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Administer a ledger-core database",
	Long: `ledgerctl runs maintenance tasks against the ledger database configured
in the environment (or a .env file).

Example:
  ledgerctl migrate
  ledgerctl seed --file catalog.yaml
  ledgerctl balances check
  ledgerctl bulk reconcile --search coffee --exclude <entry-id> --action mark_cleared`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logLevel := slog.LevelInfo
		if debug {
			logLevel = slog.LevelDebug
		}

		logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
			Level: logLevel,
		}))
		slog.SetDefault(logger)
	},
}

// Execute runs the root command. Errors are logged and printed to stderr.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		slog.Error("command failed", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "env file to load (default is .env)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(balancesCmd)
	rootCmd.AddCommand(accountsCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(bulkCmd)
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.Load(cfgFile)
	}
	return config.Load()
}

// openLedger opens and migrates the configured store. The returned close
// function releases it.
func openLedger(ctx context.Context) (*config.Config, *store.SQLStore, *ledger.LedgerService, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	slog.Debug("opening database", "driver", cfg.DatabaseDriver)
	st, err := store.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	svc := ledger.NewLedgerService(st, ledger.WithLogger(slog.Default()))
	return cfg, st, svc, nil
}
