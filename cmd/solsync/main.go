package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:  "solsync",
		Usage: "Incremental Solana token transaction sync CLI",
		Description: `Synchronizes on-chain transaction history for a tracked token address
into a local, date-partitioned dataset, and derives summary statistics
from the merged view.

Configuration is read from environment variables; see the config package
for the full list (SOLANA_RPC_URLS and TOKEN_ADDRESS are required for
syncing).`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			syncCommand(),
			{
				Name:  "dataset",
				Usage: "Local dataset inspection commands",
				Subcommands: []*cli.Command{
					datasetMergeCommand(),
					datasetListCommand(),
					datasetQueryCommand(),
					datasetCheckpointCommand(),
				},
			},
			reportCommand(),
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Dataset directory",
				EnvVars: []string{"DATA_DIR"},
				Value:   "./data",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "info",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
