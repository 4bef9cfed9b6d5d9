// Package main provides the crawler command-line tool for collecting
// property listings from the configured sources.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"propcrawl/internal/config"
	"propcrawl/internal/logger"
	"propcrawl/internal/models"
	"propcrawl/internal/orchestrator"
	"propcrawl/internal/report"
	"propcrawl/internal/storage"
)

func main() {
	// 1. Define Command-Line Flags
	// ---------------------------
	configFile := flag.String("config", "", "Path to YAML configuration file")
	source := flag.String("source", "", "Crawl a single source (default: all enabled sources)")
	maxPages := flag.Int("max-pages", 0, "Cap result pages per source (0 = config default)")
	operation := flag.String("operation", "", "Filter by operation type (sale, rent, temporary_rent)")
	propertyType := flag.String("property-type", "", "Filter by property type (apartment, house, ...)")
	city := flag.String("city", "", "Filter by city")
	memory := flag.Bool("memory", false, "Use the in-memory store instead of Postgres (dry run)")

	flag.Parse()

	// 2. Load Configuration
	// ---------------------
	var cfg *config.Config

	var err error

	if *configFile != "" {
		fmt.Printf("⚙️  Loading configuration from: %s\n", *configFile)

		cfg, err = config.LoadConfig(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ Failed to load config: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg = config.Default()
	}

	log := logger.NewLogger(cfg.Crawler.Logging.Level)

	// 3. Open Storage
	// ---------------
	var store storage.Store

	if *memory {
		log.Info("using in-memory store, results are discarded on exit")

		store = storage.NewMemoryStore()
	} else {
		store, err = storage.NewPostgresStore(cfg.Database.DSN())
		if err != nil {
			log.Error(fmt.Sprintf("❌ Failed to connect to database: %v", err))
			os.Exit(1)
		}
	}
	defer store.Close()

	// 4. Crawl
	// --------
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	filters := buildFilters(*operation, *propertyType, *city)
	orch := orchestrator.New(cfg, store, log)

	log.Info("🚀 Starting property crawl")

	startTime := time.Now()

	var results []models.SessionResult

	if *source != "" {
		var result models.SessionResult

		result, err = orch.CrawlOne(ctx, *source, filters, *maxPages)
		results = []models.SessionResult{result}
	} else {
		results, err = orch.CrawlAll(ctx, filters, *maxPages)
	}

	if err != nil {
		log.Error(fmt.Sprintf("❌ Crawl failed: %v", err))
		os.Exit(1)
	}

	// 5. Final Report
	// ---------------
	log.Info(fmt.Sprintf("✨ Crawl complete in %v", time.Since(startTime).Round(time.Second)))
	fmt.Println()
	fmt.Print(report.RenderResults(results))

	for _, r := range results {
		if r.Status == models.SessionFailed {
			os.Exit(1)
		}
	}
}

// buildFilters maps the optional CLI filter flags onto a search filter set.
func buildFilters(operation, propertyType, city string) models.SearchFilters {
	var filters models.SearchFilters

	if operation != "" {
		op := models.OperationType(operation)
		filters.OperationType = &op
	}

	if propertyType != "" {
		pt := models.PropertyType(propertyType)
		filters.PropertyType = &pt
	}

	if city != "" {
		filters.City = &city
	}

	return filters
}
