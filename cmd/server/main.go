package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"healthpass/internal/platform/config"
	"healthpass/internal/platform/httpserver"
	"healthpass/internal/platform/logger"
)

const shutdownGrace = 15 * time.Second

// main wires dependencies from the environment, starts the background loops
// and serves HTTP until SIGINT or SIGTERM.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.close()

	app.start(ctx)
	srv := httpserver.New(cfg.Addr, app.router)
	return httpserver.Run(ctx, srv, shutdownGrace, log)
}
