package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/ledger-core/internal/ledger"
)

var accountType string

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Inspect accounts",
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts with their stored balances",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, st, svc, err := openLedger(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		accounts, err := svc.ListAccounts(cmd.Context(), ledger.AccountFilter{Type: ledger.AccountType(accountType)})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTYPE\tSUBTYPE\tBALANCE")
		for _, a := range accounts {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s %s\n", a.ID, a.Name, a.Type, a.Subtype, a.CurrentBalance.StringFixed(2), a.Currency)
		}
		return w.Flush()
	},
}

func init() {
	accountsListCmd.Flags().StringVar(&accountType, "type", "", "only list ASSET or LIABILITY accounts")
	accountsCmd.AddCommand(accountsListCmd)
}
