package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/solsync/solsync/service/config"
	"github.com/solsync/solsync/service/metrics"
	"github.com/solsync/solsync/service/nats"
	"github.com/solsync/solsync/service/solana"
	"github.com/solsync/solsync/service/store"
	syncsvc "github.com/solsync/solsync/service/sync"
	"github.com/urfave/cli/v2"
)

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Run one synchronization round (backfill or incremental)",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "full",
				Usage: "Discard the checkpoint and force a full backfill",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.LogLevel)

			address, err := solanago.PublicKeyFromBase58(cfg.TokenAddress)
			if err != nil {
				return fmt.Errorf("invalid token address %q: %w", cfg.TokenAddress, err)
			}

			m := metrics.NewMetrics(nil)
			if cfg.MetricsAddr != "" {
				go func() {
					mux := http.NewServeMux()
					mux.Handle("/metrics", promhttp.Handler())
					if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
						logger.Error("metrics endpoint failed", "error", err)
					}
				}()
				logger.Info("serving metrics", "addr", cfg.MetricsAddr)
			}

			rotator := solana.NewEndpointRotator(cfg.RPCURLs)
			client := solana.NewFailoverClient(rotator, solana.FailoverOptions{
				MaxRetries: cfg.MaxRetries,
				BaseDelay:  cfg.BaseRetryDelay,
				Timeout:    cfg.RPCTimeout,
			}, m, logger)

			checkpoints := store.NewCheckpointStore(cfg.DataDir, logger)
			dataset := store.NewDatasetStore(cfg.DataDir, logger)

			var publisher nats.Publisher
			if cfg.NATSURL != "" {
				p, err := nats.NewPublisher(cfg.NATSURL, logger)
				if err != nil {
					return fmt.Errorf("failed to initialize NATS publisher: %w", err)
				}
				defer p.Close()
				publisher = p
			}

			if c.Bool("full") {
				if err := checkpoints.Reset(); err != nil {
					return err
				}
				logger.Info("checkpoint discarded, forcing full backfill")
			}

			orchestrator := syncsvc.New(client, syncsvc.Options{
				Address:       address,
				LookbackDays:  cfg.LookbackDays,
				PageLimit:     cfg.PageLimit,
				DetailWorkers: cfg.DetailWorkers,
				PageDelay:     cfg.PageDelay,
			}, checkpoints, dataset, publisher, m, logger)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			merged, err := orchestrator.Run(ctx)
			if err != nil {
				return err
			}

			logger.Info("sync finished",
				"state", string(orchestrator.State()),
				"dataset_size", len(merged),
			)
			return nil
		},
	}
}
