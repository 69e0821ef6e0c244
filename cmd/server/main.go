package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/event-crm/internal/api"
	"github.com/ignite/event-crm/internal/app"
	"github.com/ignite/event-crm/internal/config"
	"github.com/ignite/event-crm/internal/pkg/logger"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("address %s is already in use: %w", addr, err)
	}
	return ln.Close()
}

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	handlers := api.NewHandlers(a.Pipeline, a.Contacts, a.Events)
	if a.Exporter != nil {
		handlers.SetExporter(a.Exporter)
	}
	if a.S3 != nil {
		handlers.SetHealthChecker(api.NewHealthChecker(a.DB, a.Redis, a.S3, cfg.AWS.RosterExportBucket))
	} else {
		handlers.SetHealthChecker(api.NewHealthChecker(a.DB, a.Redis, nil, ""))
	}

	server := api.NewServer(cfg.Server, handlers)
	if err := checkPortAvailable(server.Addr()); err != nil {
		logger.Error("pre-flight check failed", "error", err)
		os.Exit(1)
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("starting server", "addr", server.Addr(), "memory_mode", a.DB == nil)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
}
