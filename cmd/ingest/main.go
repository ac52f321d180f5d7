package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"snapledger/internal/config"
	"snapledger/internal/extract"
	"snapledger/internal/fx"
	"snapledger/internal/imagestore"
	"snapledger/internal/logger"
	"snapledger/internal/pipeline"
	"snapledger/internal/storage"
)

func main() {
	log := logger.New()

	file := flag.String("file", "", "Path to the receipt image (JPEG)")
	user := flag.String("user", "", "Owning user ID")
	flag.Parse()

	if *file == "" || *user == "" {
		log.Fatal().Msg("Error: --file and --user are required")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	imageBytes, err := os.ReadFile(*file)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("Failed to read receipt image")
	}

	repo, err := storage.Open(cfg.SQLiteDBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open record store")
	}
	defer repo.Close()

	orchestrator := pipeline.New(
		repo,
		imagestore.NewGCS(cfg.GCSBucket),
		extract.NewEngine(cfg.ModelName, cfg.ExtractTimeout, cfg.ExtractPlace, log),
		fx.NewClient(cfg.RatesBaseURL, cfg.RatesAPIKey, cfg.RatesTimeout, log),
		pipeline.Options{
			DefaultTargetCurrency: cfg.DefaultTargetCurrency,
			PerUserCurrency:       cfg.PerUserCurrency,
			StorePlace:            cfg.ExtractPlace,
		},
		log,
	)

	// Bounded so the CLI doesn't hang on a stuck upstream.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	log.Info().Str("file", *file).Str("user_id", *user).Msg("Starting ingestion")

	rec, err := orchestrator.Ingest(ctx, *user, imageBytes, *file)
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}

	fmt.Printf("Ingested expense %s: %s %s on %s (%s)\n",
		rec.ID, rec.Amount.Decimal.StringFixed(2), rec.Currency, rec.ExpenseDate, rec.Category)
}
