package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"linkmind/internal/bot"
	"linkmind/internal/config"
	"linkmind/internal/metadata"
	"linkmind/internal/pipeline"
	"linkmind/internal/storage"
	"linkmind/internal/suggest"
	"linkmind/internal/tags"
)

func main() {
	// --- Configuration Loading ---
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger Setup ---
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	log.WithFields(logrus.Fields{
		"badgerdb_path":  cfg.BadgerDBPath,
		"fetch_strategy": cfg.FetchStrategy,
		"ai_model":       cfg.AIModel,
	}).Info("Configuration loaded successfully")

	// --- Initialize Components ---
	log.Info("Initializing components...")

	// Database
	repo, err := storage.NewBadgerRepository(cfg.BadgerDBPath, log)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		log.Info("Closing database...")
		if err := repo.Close(); err != nil {
			log.WithError(err).Error("Error closing database")
		}
	}()

	// Metadata fetcher + cache
	var fetcher metadata.Fetcher
	if cfg.FetchStrategy == config.FetchStrategyBrowser {
		fetcher = metadata.NewBrowserFetcher(cfg.MetadataTimeout, log)
	} else {
		fetcher = metadata.NewHTTPFetcher(cfg.MetadataTimeout, log)
	}
	cache := metadata.NewCache(cfg.MetadataCacheTTL, cfg.MetadataCacheSize)

	// AI suggester
	suggester := suggest.NewOpenAIClient(cfg.AIEndpoint, cfg.AIModel, cfg.AIAPIKey, log)

	// Tag vocabulary + reconciliation
	tagStore := tags.NewStore(repo, log)
	engine := tags.NewEngine(tagStore, log)

	// Pipeline
	registry := pipeline.NewRegistry()
	runner := pipeline.NewRunner(repo, fetcher, cache, suggester, tagStore, engine, registry, log)

	// Bot Handler
	botHandler, err := bot.NewHandler(cfg, repo, runner, tagStore, log)
	if err != nil {
		log.Fatalf("Failed to initialize Telegram bot handler: %v", err)
	}

	// --- Application Startup ---
	log.Info("Starting linkmind...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go botHandler.Start(ctx)

	log.Info("linkmind is running. Press Ctrl+C to exit.")

	// --- Wait for Shutdown Signal ---
	<-ctx.Done()

	// --- Graceful Shutdown ---
	log.Info("Shutting down linkmind...")
	stop()

	log.Info("linkmind shut down gracefully.")
}
