package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcoot/pairlobby/internal/api"
	"github.com/mcoot/pairlobby/internal/config"
	"github.com/mcoot/pairlobby/internal/factory"
	"github.com/mcoot/pairlobby/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %s\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging configuration: %s\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

const shutdownTimeout = 10 * time.Second

func run(cfg config.Config, logger *slog.Logger) error {
	app, err := factory.New(factory.FromServerConfig(cfg, logger))
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	// The signal only stops serving; app.Close stops the executor once
	// every connection has reported its disconnect
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app.Start(context.Background())

	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.Host
	serverConfig.Port = cfg.Port
	server := api.NewServer(app.Router(cfg.StaticDir), serverConfig, logger)
	// Shutdown starts by closing the hub so open websockets begin to end
	server.RegisterOnShutdown(app.Hub.Close)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.String("storage", cfg.StorageType))

	var serveErr error
	select {
	case serveErr = <-errCh:
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		serveErr = server.Shutdown(context.Background())
	}

	// websocket connections are hijacked, so Shutdown does not wait for them;
	// app.Close drains them before stopping the executor and storage
	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.Close(closeCtx); err != nil {
		logger.Error("cleanup error", slog.String("error", err.Error()))
	}
	logger.Info("server stopped")
	return serveErr
}
