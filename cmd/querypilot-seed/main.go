// Command querypilot-seed writes the demo sales dataset to the object store
// so the DuckDB warehouse can mount it.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/querypilot/querypilot/internal/app"
	"github.com/querypilot/querypilot/internal/config"
	"github.com/querypilot/querypilot/internal/demo/seed"
	"github.com/querypilot/querypilot/internal/observability"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("querypilot-seed")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := app.OpenObjectStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}
	service, err := seed.NewService(seed.Config{
		Customers: cfg.Seed.Customers,
		Orders:    cfg.Seed.Orders,
		Seed:      cfg.Seed.Seed,
	}, store, logger)
	if err != nil {
		logger.Error("failed to initialize seeder", slog.Any("error", err))
		os.Exit(1)
	}

	summary, err := service.Run(ctx)
	if err != nil {
		logger.Error("seeding failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("demo dataset written",
		slog.String("bucket", cfg.ObjectStore.Bucket),
		slog.String("dataset", seed.Dataset),
		slog.Int("customers", summary.Customers),
		slog.Int("orders", summary.Orders),
		slog.Int("objects", len(summary.Objects)),
	)
}
