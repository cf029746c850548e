// =============================================================================
// Charges to Invoice - Check Command
// =============================================================================
//
// This file defines the 'check' command, which validates and aggregates an
// export without rendering it. Use it to see what an invoice would contain
// and which rows would be dropped.
//
// COMMAND USAGE:
//   invoicegen check --input charges.xlsx
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/charges-to-invoice/internal/aggregate"
	"github.com/ginjaninja78/charges-to-invoice/internal/format"
	"github.com/ginjaninja78/charges-to-invoice/internal/ingest"
	"github.com/ginjaninja78/charges-to-invoice/internal/invoice"
	"github.com/ginjaninja78/charges-to-invoice/internal/layout"
	"github.com/ginjaninja78/charges-to-invoice/internal/validation"
)

var checkInput string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate a charges export and print its totals",
	Long: `The check command reads a charges export, runs the same validation and
grouping as generate, and prints the PO groups, the service rollup, the
totals and any dropped rows. No PDF is produced.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheck(cmd.OutOrStdout(), checkInput)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkInput, "input", "", "Charges export to check")
	_ = checkCmd.MarkFlagRequired("input")
}

func runCheck(out io.Writer, path string) error {
	table, err := ingest.ReadFile(path, appConfig.CSV)
	if err != nil {
		return err
	}

	prepared, err := invoice.NewGenerator(appConfig, logger, nil).Prepare(table)
	if err != nil {
		return err
	}
	printCheckReport(out, prepared.Validation, prepared.Aggregate)
	return nil
}

func printCheckReport(out io.Writer, vr *validation.Result, agg *aggregate.InvoiceAggregate) {
	fmt.Fprintln(out, "=== Charges Check ===")
	fmt.Fprintf(out, "Invoice:         %s\n", agg.InvoiceNumber)
	fmt.Fprintf(out, "Grouped by:      %s\n", vr.OuterColumn)
	fmt.Fprintf(out, "Rows:            %d total, %d billed, %d dropped\n", vr.TotalRows, len(vr.Rows), vr.Dropped())

	if vr.Dropped() > 0 {
		counts := vr.DroppedByReason()
		for _, reason := range validation.SortedReasons(counts) {
			fmt.Fprintf(out, "  %-24s %d (%s)\n", reason, counts[reason], reason.Description())
		}
	}

	fmt.Fprintln(out, "\n=== PO Groups ===")
	agg.Groups.Each(func(key string, g *aggregate.OuterGroup) bool {
		fmt.Fprintf(out, "PO# %-20s %3d document(s)  $%s\n", key, g.Documents.Len(), format.Money(g.Total()))
		return true
	})

	fmt.Fprintln(out, "\n=== Services ===")
	for _, r := range agg.ServiceRollup.Values() {
		fmt.Fprintln(out, layout.RollupLine(r))
	}

	fmt.Fprintln(out, "\n=== Totals ===")
	fmt.Fprintf(out, "Subtotal:        $%s\n", format.Money(agg.Subtotal))
	fmt.Fprintf(out, "%-16s $%s\n", appConfig.Invoice.TaxLabel+":", format.Money(agg.Tax))
	fmt.Fprintf(out, "Total due:       $%s\n", format.Money(agg.Total))
}
