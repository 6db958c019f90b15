package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/example/ledger-core/internal/seed"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create missing category groups and categories",
	Long: `Create the category catalog from a YAML file, or from the built-in
defaults when no file is given. Existing groups and categories are kept.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, st, svc, err := openLedger(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		path := seedFile
		if path == "" {
			path = cfg.CatalogFile
		}
		specs, err := seed.Load(path)
		if err != nil {
			return err
		}

		created, err := svc.EnsureCatalog(cmd.Context(), specs)
		if err != nil {
			return fmt.Errorf("failed to seed catalog: %w", err)
		}
		slog.Info("catalog seeded", "groups", len(specs), "created", created)
		fmt.Fprintf(cmd.OutOrStdout(), "created %d catalog records\n", created)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "", "YAML catalog file (default: built-in catalog)")
}
