package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/itchyny/gojq"
	"github.com/solsync/solsync/service/solana"
	"github.com/solsync/solsync/service/store"
	"github.com/urfave/cli/v2"
)

func datasetStore(c *cli.Context) *store.DatasetStore {
	return store.NewDatasetStore(c.String("data-dir"), setupLogger(c.String("log-level")))
}

func datasetMergeCommand() *cli.Command {
	return &cli.Command{
		Name:  "merge",
		Usage: "Re-materialize the merged dataset view from raw partitions",
		Action: func(c *cli.Context) error {
			merged, err := datasetStore(c).MergeAll()
			if err != nil {
				return fmt.Errorf("failed to merge dataset: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Merged %d records\n", len(merged))
			return nil
		},
	}
}

func datasetListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Usage:   "List records from the merged dataset (newest first)",
		Aliases: []string{"ls"},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of records to print (0 = all)",
				Value:   25,
			},
		},
		Action: func(c *cli.Context) error {
			records, err := datasetStore(c).LoadMerged()
			if err != nil {
				return err
			}
			if limit := c.Int("limit"); limit > 0 && len(records) > limit {
				records = records[:limit]
			}

			if c.Bool("json") {
				return outputJSON(recordsToJSON(records))
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIMESTAMP\tSIGNATURE\tSLOT\tSUCCESS\tFEE\tBALANCE DELTA")
			for _, rec := range records {
				fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%d\t%d\n",
					rec.Timestamp.Format(time.RFC3339),
					rec.Signature,
					rec.Slot,
					rec.Success,
					rec.Fee,
					rec.BalanceDelta,
				)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d records\n", len(records))
			return nil
		},
	}
}

func datasetQueryCommand() *cli.Command {
	return &cli.Command{
		Name:      "query",
		Usage:     "Run a jq expression over the merged dataset",
		ArgsUsage: "<jq-expression>",
		Description: `The merged dataset is presented to the expression as a JSON array of
record objects. For example:

  solsync dataset query '.[] | select(.success | not) | .signature'
  solsync dataset query '[.[] | .balance_delta] | add'`,
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: a jq expression")
			}

			query, err := gojq.Parse(c.Args().First())
			if err != nil {
				return fmt.Errorf("failed to parse jq expression: %w", err)
			}
			code, err := gojq.Compile(query)
			if err != nil {
				return fmt.Errorf("failed to compile jq expression: %w", err)
			}

			records, err := datasetStore(c).LoadMerged()
			if err != nil {
				return err
			}

			// Round-trip through JSON so gojq sees plain maps and slices.
			data, err := json.Marshal(recordsToJSON(records))
			if err != nil {
				return err
			}
			var input any
			if err := json.Unmarshal(data, &input); err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			iter := code.Run(input)
			for {
				v, ok := iter.Next()
				if !ok {
					break
				}
				if err, isErr := v.(error); isErr {
					return fmt.Errorf("jq evaluation failed: %w", err)
				}
				if err := enc.Encode(v); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func datasetCheckpointCommand() *cli.Command {
	return &cli.Command{
		Name:  "checkpoint",
		Usage: "Show the current sync checkpoint",
		Action: func(c *cli.Context) error {
			cp := store.NewCheckpointStore(c.String("data-dir"), setupLogger(c.String("log-level"))).Load()
			if cp.IsZero() {
				fmt.Fprintln(os.Stderr, "No checkpoint: next sync will run a full backfill")
			}
			return outputJSON(cp)
		},
	}
}

// recordJSON is the JSON shape of one dataset record for CLI output and
// jq filtering.
type recordJSON struct {
	Timestamp    time.Time `json:"timestamp"`
	Signature    string    `json:"signature"`
	Slot         uint64    `json:"slot"`
	Success      bool      `json:"success"`
	Fee          uint64    `json:"fee"`
	BalanceDelta int64     `json:"balance_delta"`
}

func recordsToJSON(records []solana.Record) []recordJSON {
	out := make([]recordJSON, 0, len(records))
	for _, rec := range records {
		out = append(out, recordJSON{
			Timestamp:    rec.Timestamp,
			Signature:    rec.Signature,
			Slot:         rec.Slot,
			Success:      rec.Success,
			Fee:          rec.Fee,
			BalanceDelta: rec.BalanceDelta,
		})
	}
	return out
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
