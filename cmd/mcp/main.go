package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/toolscout/agent-tools-rag/internal/adapters/mcp"
	"github.com/toolscout/agent-tools-rag/internal/bootstrap"
	"github.com/toolscout/agent-tools-rag/internal/config"
)

const version = "0.1.0"

func main() {
	cfg := config.Load()
	// Stdio is the MCP transport; keep logs quiet unless asked otherwise.
	if os.Getenv("LOG_LEVEL") == "" {
		cfg.LogLevel = "warn"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	srv := mcpadapter.NewServer(app.Retriever, app.Ask, version, app.Logger)
	if err := mcpadapter.ServeStdio(srv); err != nil {
		log.Fatalf("mcp server error: %v", err)
	}
}
