// Command fireledger-worker consumes queued processing requests and runs
// them through the pipeline.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"fireledger/internal/amqp"
	"fireledger/internal/config"
	applog "fireledger/internal/log"
	"fireledger/internal/services"
	"fireledger/internal/sheets"
	gsheet "fireledger/internal/sheets/google"
	mem "fireledger/internal/sheets/memory"
	"fireledger/internal/storage"
	"fireledger/internal/worker"
)

func main() {
	_ = godotenv.Load()

	applog.SetDefault(applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentWorker))
	slog.Info("starting fireledger-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store sheets.Store
	switch cfg.StoreBackend {
	case "sheets":
		cli, err := gsheet.NewFromEnv(ctx)
		if err != nil {
			slog.Error("failed to initialize google sheets client", "error", err)
			os.Exit(1)
		}
		store = cli
	default:
		store = mem.NewLedger(cfg.GoogleSheetName)
		slog.Warn("memory backend selected, processed months are not persisted")
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		slog.Error("failed to open run archive", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		slog.Error("failed to initialize amqp client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	pipeline := services.NewPipeline(store, cfg.GoogleSheetName, cfg.RulesDir,
		services.WithArchive(repo))
	processWorker := worker.NewProcessWorker(pipeline, cfg.CSVDir)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeProcessRequests(gctx, processWorker.HandleProcessRequest)
	})
	g.Go(func() error {
		return logArchiveSummary(gctx, repo)
	})

	slog.Info("worker ready", "queue", cfg.AMQPQueue)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("worker stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("worker stopped gracefully")
}

// logArchiveSummary periodically reports the archive state, a cheap
// heartbeat that also surfaces a broken archive early.
func logArchiveSummary(ctx context.Context, repo *storage.Repository) error {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			runs, err := repo.RecentRuns(ctx, 1)
			if err != nil {
				slog.ErrorContext(ctx, "archive summary failed", "error", err)
				continue
			}
			if len(runs) == 0 {
				slog.InfoContext(ctx, "archive summary", "runs", 0)
				continue
			}
			slog.InfoContext(ctx, "archive summary",
				"last_run_id", runs[0].ID,
				"last_period", runs[0].Period.String(),
				"last_outcome", runs[0].Outcome)
		}
	}
}
