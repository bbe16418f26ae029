package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"eventpass/internal/app"
	"eventpass/internal/platform/config"
	"eventpass/internal/platform/httpserver"
	"eventpass/internal/platform/logger"
)

// main wires dependencies, serves the HTTP API and shuts down on SIGINT or
// SIGTERM. Business logic lives in internal/registration.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			log.Error("shutdown cleanup failed", "error", cerr)
		}
	}()

	srv := httpserver.New(cfg.Addr, a.Router())
	log.Info("starting eventpass", "addr", cfg.Addr, "store", cfg.Store)
	return httpserver.Run(ctx, srv, log)
}
