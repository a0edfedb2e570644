// Command fireledger-server exposes the processing pipeline over HTTP.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fireledger/internal/amqp"
	"fireledger/internal/config"
	apphttp "fireledger/internal/http"
	applog "fireledger/internal/log"
	"fireledger/internal/services"
	"fireledger/internal/sheets"
	gsheet "fireledger/internal/sheets/google"
	mem "fireledger/internal/sheets/memory"
	"fireledger/internal/storage"
)

func main() {
	_ = godotenv.Load()

	applog.SetDefault(applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store sheets.Store
	switch cfg.StoreBackend {
	case "sheets":
		cli, err := gsheet.NewFromEnv(ctx)
		if err != nil {
			slog.Error("failed to initialize google sheets client", "error", err)
			os.Exit(1)
		}
		store = cli
		slog.Info("initialized sheets backend", "worksheet", cfg.GoogleSheetName)
	default:
		store = mem.NewLedger(cfg.GoogleSheetName)
		slog.Info("initialized memory backend", "worksheet", cfg.GoogleSheetName)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		slog.Error("failed to open run archive", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	pipeline := services.NewPipeline(store, cfg.GoogleSheetName, cfg.RulesDir,
		services.WithArchive(repo))

	opts := []apphttp.Option{
		apphttp.WithArchive(repo),
		apphttp.WithAnalyticsTTL(cfg.AnalyticsCacheTTL),
	}

	// The worker queue is optional. Without it /api/process always runs
	// inline.
	if cfg.AMQPURL != "" {
		if amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue); err == nil {
			defer amqpClient.Close()
			opts = append(opts, apphttp.WithPublisher(amqpClient))
			slog.Info("async processing enabled", "queue", cfg.AMQPQueue)
		} else {
			slog.Warn("amqp unavailable, async processing disabled", "error", err)
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, pipeline, cfg.CSVDir, opts...)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		slog.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		cancel()
	}()

	slog.Info("starting fireledger server", "port", cfg.Port, "backend", cfg.StoreBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	slog.Info("server stopped gracefully")
}
