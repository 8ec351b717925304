package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/diabetes-risk-server/internal/api"
	"github.com/diabetes-risk-server/internal/config"
	"github.com/diabetes-risk-server/internal/logging"
	"github.com/diabetes-risk-server/internal/service"
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
	logger := logging.NewLogger(cfg.Logging)
	logger.WithField("environment", cfg.Environment).
		Infof("Starting diabetes risk predictor on %s:%d", cfg.Server.Host, cfg.Server.Port)

	server := api.NewServer(configManager, service.NewWaterfallPredictor(logger), logger)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}
