package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the ledger schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, st, _, err := openLedger(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "schema is up to date (%s)\n", cfg.DatabaseDriver)
		return nil
	},
}
