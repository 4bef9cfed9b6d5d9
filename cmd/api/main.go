// Package main provides the HTTP API server exposing crawl control and
// stored property queries.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"propcrawl/internal/api"
	"propcrawl/internal/config"
	"propcrawl/internal/logger"
	"propcrawl/internal/orchestrator"
	"propcrawl/internal/storage"
)

func main() {
	configFile := flag.String("config", "", "Path to YAML configuration file")
	port := flag.Int("port", 0, "Listen port (overrides config)")

	flag.Parse()

	var cfg *config.Config

	var err error

	if *configFile != "" {
		cfg, err = config.LoadConfig(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ Failed to load config: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg = config.Default()
	}

	if *port > 0 {
		cfg.API.Port = *port
	}

	log := logger.NewLogger(cfg.Crawler.Logging.Level)

	store, err := storage.NewPostgresStore(cfg.Database.DSN())
	if err != nil {
		log.Error(fmt.Sprintf("❌ Failed to connect to database: %v", err))
		os.Exit(1)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch := orchestrator.New(cfg, store, log)
	server := api.NewServer(store, orch, log)

	addr := fmt.Sprintf(":%d", cfg.API.Port)

	log.Info(fmt.Sprintf("🚀 API server listening on %s", addr))

	if err := api.Serve(ctx, addr, server.Handler(), log); err != nil {
		log.Error(fmt.Sprintf("❌ Server error: %v", err))
		os.Exit(1)
	}
}
