// feedpulse runs the ingest HTTP API together with the outbox dispatcher
// and ingestion consumer in one process.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mbras/feedpulse/pkg/api"
	"github.com/mbras/feedpulse/pkg/broker"
	"github.com/mbras/feedpulse/pkg/config"
	"github.com/mbras/feedpulse/pkg/consumer"
	"github.com/mbras/feedpulse/pkg/ingest"
	"github.com/mbras/feedpulse/pkg/outbox"
	"github.com/mbras/feedpulse/pkg/search"
	"github.com/mbras/feedpulse/pkg/storage"
	"github.com/mbras/feedpulse/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v", envPath, err)
		log.Printf("continuing with existing environment variables")
	} else {
		log.Printf("loaded environment from %s", envPath)
	}

	log.Printf("starting %s", version.Full())

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewClient(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("failed to connect to storage: %v", err)
	}
	defer store.Close()
	log.Println("connected to storage and applied pending migrations")

	brokerClient, err := broker.NewClient(cfg.Broker)
	if err != nil {
		log.Fatalf("failed to connect to broker: %v", err)
	}
	defer brokerClient.Close()

	searchClient, err := search.NewClient(cfg.Search)
	if err != nil {
		log.Fatalf("failed to build search client: %v", err)
	}

	ingestEngine := ingest.NewEngine(store)

	dispatcher := outbox.New(store, brokerClient, searchClient, cfg.Outbox)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()
	log.Printf("outbox dispatcher started (worker_id=%s)", cfg.Outbox.WorkerID)

	ingestConsumer := consumer.New(store, brokerClient, searchClient, cfg.Consumer)
	go func() {
		if err := ingestConsumer.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("ingestion consumer stopped: %v", err)
		}
	}()
	log.Println("ingestion consumer started")

	server := api.NewServer(cfg.HTTP.GinMode, store, ingestEngine, api.NullPublisher{})

	go func() {
		log.Printf("HTTP server listening on :%s", cfg.HTTP.Port)
		if err := server.Start(":" + cfg.HTTP.Port); err != nil {
			log.Printf("HTTP server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("error shutting down HTTP server: %v", err)
	}
}
