package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/AndreLuis933/irmaos-goncalves-scraper/config"
	"github.com/AndreLuis933/irmaos-goncalves-scraper/httputil"
	"github.com/AndreLuis933/irmaos-goncalves-scraper/logging"
	"github.com/AndreLuis933/irmaos-goncalves-scraper/scheduler"
	"github.com/AndreLuis933/irmaos-goncalves-scraper/scraper"
	"github.com/AndreLuis933/irmaos-goncalves-scraper/services"
	"github.com/AndreLuis933/irmaos-goncalves-scraper/storage"
	"github.com/AndreLuis933/irmaos-goncalves-scraper/workers"
)

var (
	scrapeNow = flag.Bool("scrape", false, "Run one scrape cycle and exit")
	imagesNow = flag.Bool("images", false, "Run one image pass and exit")
	report    = flag.Bool("report", false, "Print the price change digest and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogPath)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Printf("Starting scraper for %s", cfg.Site.Name)

	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	clients := httputil.NewClients(cfg.Scraper.ProxyURL)
	svc := services.New(store)
	orchestrator := scraper.New(cfg, clients, svc)

	var uploader workers.Uploader
	if s3cfg := (storage.S3Config{
		Bucket:          cfg.S3.Bucket,
		Region:          cfg.S3.Region,
		Endpoint:        cfg.S3.Endpoint,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
	}); s3cfg.Enabled() {
		up, err := storage.NewS3Uploader(ctx, s3cfg)
		if err != nil {
			log.Fatalf("Failed to set up S3 uploader: %v", err)
		}
		uploader = up
		log.Printf("Image mirroring to bucket %s enabled", s3cfg.Bucket)
	}
	images := workers.NewImageWorker(store, clients, uploader, cfg)

	switch {
	case *scrapeNow:
		if err := orchestrator.Run(ctx); err != nil {
			log.Fatalf("Scrape failed: %v", err)
		}
		return
	case *imagesNow:
		if err := images.Run(ctx); err != nil {
			log.Fatalf("Image pass failed: %v", err)
		}
		return
	case *report:
		if err := svc.RelatorioMudancas(ctx); err != nil {
			log.Fatalf("Report failed: %v", err)
		}
		return
	}

	sched := scheduler.New(cfg, orchestrator, images)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.DatabaseURL != "" {
		store, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		store.SetBatchSize(cfg.BatchSize)
		log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.DatabaseURL))
		return store, nil
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	store.SetBatchSize(cfg.BatchSize)
	log.Printf("SQLite database: %s", cfg.DBPath)
	return store, nil
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	// Simple mask - find :// and mask until @
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	// Find : after user
	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
