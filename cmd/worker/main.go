package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paflow/audit"
	"paflow/config"
	"paflow/internal/messaging/consumer"
	"paflow/internal/messaging/dispatcher"
	"paflow/processing"
	"paflow/storage/store"
)

// Worker configuration file path
const workerConfigPath = "./config/worker.defaults.yml"

func main() {
	logger := log.New(os.Stdout, "[WORKER] ", log.LstdFlags|log.Lshortfile)
	logger.Println("Starting PA processing worker...")

	// 1. Load worker configuration
	cfg, err := config.LoadWorkerConfig(workerConfigPath)
	if err != nil {
		logger.Fatalf("FATAL: Failed to load worker configuration: %v", err)
	}

	pollTimeout, err := time.ParseDuration(cfg.Worker.PollTimeout)
	if err != nil {
		logger.Printf("Warning: Invalid poll_timeout '%s', using default 2s", cfg.Worker.PollTimeout)
		pollTimeout = 2 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Initialize dependencies
	logger.Println("Initializing database connection...")
	dbStore, err := store.NewPostgresStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatalf("FATAL: Failed to initialize database store: %v", err)
	}
	defer dbStore.Close()

	logger.Println("Initializing queue consumer...")
	jobConsumer, err := consumer.New(ctx, cfg.Queue, pollTimeout, logger)
	if err != nil {
		logger.Fatalf("FATAL: Failed to initialize queue consumer: %v", err)
	}
	defer jobConsumer.Close()

	logger.Println("Initializing job dispatcher (for retries and DLQ)...")
	jobDispatcher, err := dispatcher.New(ctx, cfg.Queue, logger)
	if err != nil {
		logger.Fatalf("FATAL: Failed to initialize job dispatcher: %v", err)
	}
	defer jobDispatcher.Close()

	// 3. Create and start the worker pool
	ledger := audit.NewLedger(dbStore, logger)
	processor := processing.NewLifecycleProcessor(dbStore, ledger, logger)
	w := processing.New(cfg.Worker, cfg.MaxJobRetries, logger, dbStore, ledger, jobConsumer, jobDispatcher, processor)

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	logger.Printf("Processing worker started with concurrency %d. Press Ctrl+C to stop.", cfg.Worker.Concurrency)

	// 4. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Println("Received shutdown signal, initiating graceful shutdown...")
	cancel()

	<-done
	logger.Println("Processing worker shut down gracefully.")
}
