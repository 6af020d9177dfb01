package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/mkorhonen/drive-rag/internal/adapters/mcp"
	"github.com/mkorhonen/drive-rag/internal/bootstrap"
	"github.com/mkorhonen/drive-rag/internal/config"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// Stdout carries the MCP protocol, so logs go to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil)).With("service", "mcp")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	adapter := mcpadapter.NewAdapter(app.Questions, app.Search, app.Repo)
	if err := adapter.ServeStdio(version); err != nil {
		logger.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}
