package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"auction_go/internal/app"
)

func main() {
	configPath := flag.String("config", app.DefaultConfigPath, "path to the YAML configuration")
	flag.Parse()

	// 1. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(ctx, *configPath); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()

	slog.InfoContext(ctx, "✨ Auction ledger fully operational. Press Ctrl+C to exit.")

	// 3. Serve until signalled
	if err := bootstrap.Run(ctx); err != nil {
		slog.Error("❌ Server failed", slog.Any("error", err))
		bootstrap.Close()
		os.Exit(1)
	}

	slog.Info("👋 Shut down gracefully")
}
