package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/ledger-core/internal/ledger"
	"github.com/example/ledger-core/internal/selection"
)

var (
	bulkIDs           []string
	bulkAccounts      []string
	bulkSearch        string
	bulkFrom          string
	bulkTo            string
	bulkUncategorized bool
	bulkExclude       []string
	bulkDryRun        bool
	bulkCategory      string
	bulkClearCategory bool
	bulkStatus        string
)

var bulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "Apply a change to many entries at once",
	Long: `Select entries either by id (--id) or by filter (--search, --account,
--from, --to, --uncategorized) minus any --exclude ids, then apply a change.

Example:
  ledgerctl bulk categorize --search coffee --category <category-id>
  ledgerctl bulk reconcile --account <account-id> --to 2024-06-30 --status manually_cleared`,
}

var bulkCategorizeCmd = &cobra.Command{
	Use:   "categorize",
	Short: "Set or clear the category of the selected entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		if bulkCategory == "" && !bulkClearCategory {
			return fmt.Errorf("one of --category or --clear is required")
		}
		return runBulk(cmd, ledger.Changeset{Category: &ledger.CategoryChange{CategoryID: bulkCategory}})
	},
}

var bulkReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Mark the selected entries cleared or unmatched",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBulk(cmd, ledger.Changeset{ReconciliationStatus: ledger.ReconciliationStatus(bulkStatus)})
	},
}

// buildSelection drives the selection engine the way an interactive client
// would: enter bulk mode, then either toggle ids or select all and exclude.
func buildSelection() (*selection.Engine, error) {
	e := selection.NewEngine()
	if err := e.EnterBulkMode(); err != nil {
		return nil, err
	}

	if len(bulkIDs) > 0 {
		for _, id := range bulkIDs {
			if err := e.ToggleMember(id, true); err != nil {
				return nil, err
			}
		}
		return e, nil
	}

	e.SetFilter(ledger.EntryFilter{
		AccountIDs:        bulkAccounts,
		Search:            bulkSearch,
		DateFrom:          bulkFrom,
		DateTo:            bulkTo,
		UncategorizedOnly: bulkUncategorized,
	})
	if err := e.SelectAll(); err != nil {
		return nil, err
	}
	for _, id := range bulkExclude {
		if err := e.ToggleMember(id, false); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func runBulk(cmd *cobra.Command, changes ledger.Changeset) error {
	_, st, svc, err := openLedger(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	e, err := buildSelection()
	if err != nil {
		return err
	}

	n, err := e.ResolvedCount(cmd.Context(), svc)
	if err != nil {
		return err
	}
	if bulkDryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "%d entries selected (dry run)\n", n)
		return nil
	}

	res, err := e.Apply(cmd.Context(), svc, changes)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Message)
	if rec := res.Reconciliation; rec != nil {
		for _, s := range rec.SkippedEntries {
			fmt.Fprintf(cmd.OutOrStdout(), "skipped %s: %s\n", s.ID, s.Reason)
		}
	}
	return nil
}

func init() {
	for _, c := range []*cobra.Command{bulkCategorizeCmd, bulkReconcileCmd} {
		f := c.Flags()
		f.StringSliceVar(&bulkIDs, "id", nil, "select these entry ids")
		f.StringSliceVar(&bulkAccounts, "account", nil, "filter by account id")
		f.StringVar(&bulkSearch, "search", "", "filter by description text")
		f.StringVar(&bulkFrom, "from", "", "filter from date (YYYY-MM-DD)")
		f.StringVar(&bulkTo, "to", "", "filter to date (YYYY-MM-DD)")
		f.BoolVar(&bulkUncategorized, "uncategorized", false, "only uncategorized entries")
		f.StringSliceVar(&bulkExclude, "exclude", nil, "leave these entry ids out of a filtered selection")
		f.BoolVar(&bulkDryRun, "dry-run", false, "report how many entries would change")
		c.MarkFlagsMutuallyExclusive("id", "search")
		c.MarkFlagsMutuallyExclusive("id", "exclude")
	}
	bulkCategorizeCmd.Flags().StringVar(&bulkCategory, "category", "", "category id to assign")
	bulkCategorizeCmd.Flags().BoolVar(&bulkClearCategory, "clear", false, "clear the category")
	bulkCategorizeCmd.MarkFlagsMutuallyExclusive("category", "clear")
	bulkReconcileCmd.Flags().StringVar(&bulkStatus, "status", string(ledger.StatusManuallyCleared), "manually_cleared or unmatched")

	bulkCmd.AddCommand(bulkCategorizeCmd)
	bulkCmd.AddCommand(bulkReconcileCmd)
}
