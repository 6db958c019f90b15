package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/ledger-core/internal/ledger"
)

var errInconsistent = errors.New("ledger is inconsistent")

var checkTransfers bool

var balancesCmd = &cobra.Command{
	Use:   "balances",
	Short: "Check or repair stored account balances",
}

var balancesCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Compare every stored balance with the sum of its entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, st, _, err := openLedger(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		v := ledger.NewValidator(st)
		results, err := v.ValidateBalanceConsistency(cmd.Context())
		if err != nil {
			return err
		}
		if checkTransfers {
			pairs, err := v.ValidateTransferPairs(cmd.Context())
			if err != nil {
				return err
			}
			results = append(results, pairs...)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CHECK\tSUBJECT\tOK\tMESSAGE")
		bad := 0
		for _, r := range results {
			subject := r.AccountID
			if subject == "" {
				subject = r.TransferID
			}
			if !r.IsValid {
				bad++
			}
			fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", r.ValidationType, subject, r.IsValid, r.Message)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if bad > 0 {
			return fmt.Errorf("%w: %d of %d checks failed", errInconsistent, bad, len(results))
		}
		return nil
	},
}

var balancesFixCmd = &cobra.Command{
	Use:   "fix [account-id...]",
	Short: "Recompute stored balances from entry history",
	Long: `Recompute the stored balance of the given accounts, or of every account
whose balance has drifted when none are given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, st, svc, err := openLedger(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		ids := args
		if len(ids) == 0 {
			results, err := ledger.NewValidator(st).ValidateBalanceConsistency(cmd.Context())
			if err != nil {
				return err
			}
			for _, r := range results {
				if !r.IsValid {
					ids = append(ids, r.AccountID)
				}
			}
		}

		for _, id := range ids {
			res, err := svc.RefreshBalance(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to refresh %s: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s (difference %s)\n",
				id, res.Previous.StringFixed(2), res.Current.StringFixed(2), res.Difference.StringFixed(2))
		}
		if len(ids) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "all balances are consistent")
		}
		return nil
	},
}

func init() {
	balancesCheckCmd.Flags().BoolVar(&checkTransfers, "transfers", false, "also check transfer pairs")
	balancesCmd.AddCommand(balancesCheckCmd)
	balancesCmd.AddCommand(balancesFixCmd)
}
