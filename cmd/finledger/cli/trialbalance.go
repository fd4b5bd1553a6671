package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/finledger/internal/accounting"
	"github.com/odyssey-erp/finledger/internal/platform/httpx"
)

func newTrialBalanceCommand() *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:     "trial-balance",
		Short:   "Print the trial balance",
		Example: "  finledger trial-balance\n  finledger trial-balance --as-of 2024-06-30",
		RunE: func(cmd *cobra.Command, _ []string) error {
			date, err := httpx.ParseDate(asOf)
			if err != nil {
				return err
			}
			date = httpx.EndOfDay(date)
			pool, err := openPool(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := accounting.NewService(accounting.NewRepository(pool, rt.cfg.RetryPolicy()), nil, rt.logger)
			tb, err := svc.GetTrialBalance(cmd.Context(), date)
			if err != nil {
				return err
			}
			return printTrialBalance(cmd, tb)
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "Last day to include (YYYY-MM-DD, default: now)")
	return cmd
}

func printTrialBalance(cmd *cobra.Command, tb accounting.TrialBalance) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "Trial balance as of %s\t\t\t\t\n", tb.AsOf.Format(time.DateOnly))
	fmt.Fprintln(w, "ACCOUNT\tNAME\tDEBIT\tCREDIT\tBALANCE\t")
	for _, l := range tb.Accounts {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%.2f\t%.2f\t\n", l.Account, l.Name, l.Debit, l.Credit, l.Balance)
	}
	fmt.Fprintf(w, "TOTAL\t\t%.2f\t%.2f\t%.2f\t\n", tb.TotalDebit, tb.TotalCredit, tb.Difference)
	if !tb.IsBalanced {
		fmt.Fprintln(w, "WARNING: debits and credits differ\t\t\t\t")
	}
	return w.Flush()
}
