package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/diabetes-risk-server/internal/bootstrap"
	"github.com/diabetes-risk-server/internal/config"
	"github.com/diabetes-risk-server/internal/logging"
	"github.com/diabetes-risk-server/internal/mcp"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()

	// stdout carries the MCP stream
	logger := logging.NewStdioSafeLogger(cfg.Logging)

	pipeline, err := bootstrap.NewPipeline(cfg, logger, bootstrap.Options{})
	if err != nil {
		logger.WithError(err).Fatal("Failed to assemble prediction pipeline")
	}
	defer pipeline.Close()

	mcpServer := mcp.NewServer(cfg.MCP, pipeline.Orchestrator, logger)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down MCP server...")
		cancel()
	}()

	if err := mcpServer.Start(ctx); err != nil {
		logger.WithError(err).Error("MCP server stopped with error")
		return
	}

	logger.Info("Diabetes risk MCP server stopped")
}
