package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"hisab/internal/cli"
	"hisab/internal/log"
	"hisab/internal/worker"
)

const backupPollInterval = 15 * time.Second

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentWorker)
	logger.Info("Starting hisab-worker")

	res := cli.OpenBook(context.Background(), logger, cfg)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Failed to close book", "error", err)
		}
	}()

	var backups worker.Backups
	if res.Backups != nil {
		backups = res.Backups
	}
	w := worker.NewLedgerWorker(res.Book, res.Exporter, backups).WithBackupDebounce(cfg.BackupDebounce)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if res.Backups == nil {
			return
		}
		if err := res.Backups.Stop(ctx); err != nil {
			logger.Error("Backup scheduler stop failed", "error", err)
		}
	})

	// On startup, export the current fiscal year in case events were missed
	if err := w.StartupSync(ctx); err != nil {
		logger.Error("Failed startup sync", "error", err)
	}

	if res.Backups != nil {
		if err := res.Backups.Start(ctx); err != nil {
			logger.Error("Failed to start backup scheduler", "error", err)
			os.Exit(1)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if res.Events != nil {
		g.Go(func() error {
			err := res.Events.Consume(gctx, w.HandleEvent)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("Skipping AMQP consumption - no AMQP_URL configured")
	}

	g.Go(func() error {
		interval := cfg.ExportRetryInterval
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := w.ProcessPending(gctx); err != nil {
					logger.Warn("Pending exports still failing", "error", err)
				}
			}
		}
	})

	if backups != nil {
		g.Go(func() error {
			ticker := time.NewTicker(backupPollInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if _, err := w.BackupIfQuiet(gctx); err != nil {
						logger.Error("Debounced backup failed", "error", err)
					}
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
