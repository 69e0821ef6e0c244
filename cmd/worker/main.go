package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ignite/event-crm/internal/app"
	"github.com/ignite/event-crm/internal/config"
	"github.com/ignite/event-crm/internal/pkg/logger"
	"github.com/ignite/event-crm/internal/worker"
)

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger.Init(logger.Options{
		Level:     logger.ParseLevel(cfg.Logging.Level),
		Pretty:    cfg.Logging.Pretty,
		RedactPII: cfg.Logging.RedactPII,
	})

	if cfg.Database.URL == "" {
		logger.Error("DATABASE_URL is required for the worker")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	reconciler := worker.NewGraduationReconciler(a.Pipeline, a.Redis, a.DB, cfg.Worker.LockTTL())
	reconciler.SetInterval(cfg.Worker.Interval())
	reconciler.SetBatchSize(cfg.Worker.BatchSize)
	if err := reconciler.Start(ctx); err != nil {
		logger.Error("failed to start graduation reconciler", "error", err)
		os.Exit(1)
	}
	logger.Info("worker running", "interval", cfg.Worker.Interval().String(), "batch_size", cfg.Worker.BatchSize)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker")
	cancel()
	reconciler.Stop()
	logger.Info("worker stopped")
}
