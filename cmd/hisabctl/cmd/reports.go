package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"hisab/internal/backend"
	"hisab/internal/core"
	"hisab/internal/ledger"
	"hisab/internal/sheets"
)

var (
	statementThrough string
	statementGaps    bool
	agingAsOf        string
	agingItems       bool
	fiscalYearExport bool
)

var statementCmd = &cobra.Command{
	Use:   "statement <customer|supplier> <id>",
	Short: "Print a party statement grouped by fiscal year",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKind(args[0])
		if err != nil {
			return err
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid party id %q", args[1])
		}
		return withBook(cmd, func(ctx context.Context, res *backend.Result) error {
			st, err := res.Book.Statement(ctx, kind, id, statementThrough, statementGaps)
			if err != nil {
				return err
			}
			writeStatement(cmd.OutOrStdout(), st.Party, st.Balance, st.Years)
			return nil
		})
	},
}

var agingCmd = &cobra.Command{
	Use:   "aging <customer|supplier>",
	Short: "Print receivable or payable aging",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKind(args[0])
		if err != nil {
			return err
		}
		var asOf core.Date
		if agingAsOf != "" {
			if asOf, err = core.ParseDate(agingAsOf); err != nil {
				return err
			}
		}
		return withBook(cmd, func(ctx context.Context, res *backend.Result) error {
			rep, err := res.Book.AgingReport(ctx, kind, asOf)
			if err != nil {
				return err
			}
			writeAging(cmd.OutOrStdout(), rep, agingItems)
			return nil
		})
	},
}

var fiscalYearCmd = &cobra.Command{
	Use:   "fiscal-year [2081/82]",
	Short: "Print the monthly summary of a fiscal year",
	Long: `Prints the per-month totals of every transaction type. With --export
the summary is also written to the configured spreadsheet.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var fy string
		if len(args) == 1 {
			fy = args[0]
		}
		return withBook(cmd, func(ctx context.Context, res *backend.Result) error {
			label, rows, err := res.Book.FiscalYearRows(ctx, fy)
			if err != nil {
				return err
			}
			writeFiscalYear(cmd.OutOrStdout(), label, rows)
			if !fiscalYearExport {
				return nil
			}
			ref, err := res.Book.ExportFiscalYear(ctx, res.Exporter, label)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nexported to %s\n", ref)
			return nil
		})
	},
}

func init() {
	statementCmd.Flags().StringVar(&statementThrough, "through", "", "last fiscal year to include, e.g. 2081/82")
	statementCmd.Flags().BoolVar(&statementGaps, "gaps", false, "include fiscal years without transactions")

	agingCmd.Flags().StringVar(&agingAsOf, "as-of", "", "aging date (YYYY-MM-DD, default today)")
	agingCmd.Flags().BoolVar(&agingItems, "items", false, "list open items per party")

	fiscalYearCmd.Flags().BoolVar(&fiscalYearExport, "export", false, "write the summary to the configured spreadsheet")
}

func parseKind(s string) (core.PartyKind, error) {
	k := core.PartyKind(strings.TrimSuffix(strings.ToLower(s), "s"))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidKind, s)
	}
	return k, nil
}

func writeStatement(out io.Writer, party core.Party, bal ledger.Balance, years []ledger.FiscalYearLedger) {
	fmt.Fprintf(out, "%s (%s #%d)  balance %s %s\n", party.Name, party.Kind, party.ID, bal.Abs(), bal.Type)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	defer tw.Flush()
	for _, y := range years {
		fmt.Fprintf(tw, "\nFY %s\t\t\t\t\t\n", y.FiscalYear.Label)
		fmt.Fprintln(tw, "Date\tBS\tNumber\tDebit\tCredit\tBalance\t")
		for _, e := range y.Entries {
			number := string(e.Kind)
			if e.Transaction != nil {
				number = e.Transaction.Number
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s %s\t\n",
				e.Date, e.BSDate, number, e.Debit, e.Credit, e.Balance.Abs(), e.BalanceType)
		}
		fmt.Fprintf(tw, "Total\t\t\t%s\t%s\t%s %s\t\n", y.TotalDebit, y.TotalCredit, y.Closing.Abs(), y.ClosingType)
	}
}

func writeAging(out io.Writer, rep ledger.AgingReport, items bool) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	defer tw.Flush()

	fmt.Fprintf(tw, "Aging as of %s\t", rep.AsOf)
	for range ledger.BucketOrder {
		fmt.Fprint(tw, "\t")
	}
	fmt.Fprintln(tw, "\t\t")

	fmt.Fprint(tw, "Party\t")
	for _, b := range ledger.BucketOrder {
		fmt.Fprintf(tw, "%s\t", b)
	}
	fmt.Fprintln(tw, "Total\tAdvance\t")

	for _, row := range rep.Rows {
		fmt.Fprintf(tw, "%s\t", row.Party.Name)
		for _, b := range ledger.BucketOrder {
			fmt.Fprintf(tw, "%s\t", row.Buckets[b])
		}
		fmt.Fprintf(tw, "%s\t%s\t\n", row.Total, row.Advance)
		if !items {
			continue
		}
		for _, it := range row.Items {
			fmt.Fprintf(tw, "  %s due %s (%dd)\t", it.Number, it.DueDate, it.DaysOverdue)
			for _, b := range ledger.BucketOrder {
				if b == it.Bucket {
					fmt.Fprintf(tw, "%s\t", it.Outstanding)
				} else {
					fmt.Fprint(tw, "\t")
				}
			}
			fmt.Fprintln(tw, "\t\t")
		}
	}

	fmt.Fprint(tw, "Total\t")
	for _, b := range ledger.BucketOrder {
		fmt.Fprintf(tw, "%s\t", rep.Totals[b])
	}
	fmt.Fprintf(tw, "%s\t%s\t\n", rep.Total, rep.Advance)
}

func writeFiscalYear(out io.Writer, label string, rows []sheets.Row) {
	fmt.Fprintf(out, "FY %s\n", label)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	defer tw.Flush()
	fmt.Fprintln(tw, strings.Join(sheets.Header, "\t")+"\t")
	for _, r := range append(rows, sheets.Totals(rows)) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\t\n",
			r.Period, r.Month, r.Type, r.Count, r.SubTotal, r.Discount, r.VAT, r.Total, r.Settled)
	}
}
