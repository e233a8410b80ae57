package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/solsync/solsync/service/stats"
	"github.com/urfave/cli/v2"
)

func reportCommand() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Print summary statistics over the merged dataset",
		Action: func(c *cli.Context) error {
			records, err := datasetStore(c).LoadMerged()
			if err != nil {
				return err
			}
			summary := stats.Compute(records, time.Now().UTC())

			if c.Bool("json") {
				return outputJSON(summaryJSON(summary))
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Total transactions\t%d\n", summary.TotalTransactions)
			fmt.Fprintf(w, "Successful\t%d\n", summary.SuccessfulTransactions)
			fmt.Fprintf(w, "Failed\t%d\n", summary.FailedTransactions)
			fmt.Fprintf(w, "Success rate\t%.2f%%\n", summary.SuccessRate)
			fmt.Fprintf(w, "Gross volume (SOL)\t%s\n", summary.GrossVolumeSOL.StringFixed(9))
			fmt.Fprintf(w, "Total fees (SOL)\t%s\n", summary.TotalFeesSOL.StringFixed(9))
			fmt.Fprintf(w, "Active days\t%d\n", summary.ActiveDays)
			if !summary.Oldest.IsZero() {
				fmt.Fprintf(w, "Oldest record\t%s\n", summary.Oldest.Format(time.RFC3339))
				fmt.Fprintf(w, "Newest record\t%s\n", summary.Newest.Format(time.RFC3339))
			}
			fmt.Fprintf(w, "Last 24h transactions\t%d\n", summary.Last24h.Transactions)
			fmt.Fprintf(w, "Last 24h volume (SOL)\t%s\n", summary.Last24h.VolumeSOL.StringFixed(9))
			fmt.Fprintf(w, "Last 24h fees (SOL)\t%s\n", summary.Last24h.FeesSOL.StringFixed(9))
			return w.Flush()
		},
	}
}

// summaryJSON flattens a stats.Summary for JSON output; decimals are
// emitted as strings to avoid float rounding.
func summaryJSON(s stats.Summary) map[string]any {
	out := map[string]any{
		"total_transactions":      s.TotalTransactions,
		"successful_transactions": s.SuccessfulTransactions,
		"failed_transactions":     s.FailedTransactions,
		"success_rate":            s.SuccessRate,
		"total_fees_lamports":     s.TotalFeesLamports,
		"total_fees_sol":          s.TotalFeesSOL.String(),
		"gross_volume_lamports":   s.GrossVolumeLamports,
		"gross_volume_sol":        s.GrossVolumeSOL.String(),
		"active_days":             s.ActiveDays,
		"last_24h": map[string]any{
			"transactions": s.Last24h.Transactions,
			"volume_sol":   s.Last24h.VolumeSOL.String(),
			"fees_sol":     s.Last24h.FeesSOL.String(),
		},
	}
	if !s.Oldest.IsZero() {
		out["oldest"] = s.Oldest.Format(time.RFC3339)
		out["newest"] = s.Newest.Format(time.RFC3339)
	}
	return out
}
