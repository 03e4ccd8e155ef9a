package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dvloznov/superbank/internal/config"
	infraBQ "github.com/dvloznov/superbank/internal/infra/bigquery"
	"github.com/dvloznov/superbank/internal/infra/sqlite"
	"github.com/dvloznov/superbank/internal/ingest"
	"github.com/dvloznov/superbank/internal/logger"
	"github.com/dvloznov/superbank/internal/objectstore"
	"github.com/dvloznov/superbank/internal/store"
)

// ingest re-slices an uploaded statement by id, e.g. after fixing the bank
// mapping of a statement that ended up FAILED.
func main() {
	// Initialize structured logger
	log := logger.New()

	// Parse CLI flags
	statementID := flag.String("statement-id", "", "ID of an uploaded statement (required)")
	localDir := flag.String("local-dir", "data/uploads", "Directory for statements when GCS_BUCKET is unset")
	flag.Parse()

	if *statementID == "" {
		log.Fatal().Msg("Error: --statement-id is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Add logger to context
	ctx = logger.WithContext(ctx, log)

	var repo store.Repository
	if cfg.Store == config.StoreBigQuery {
		repo, err = infraBQ.NewRepository(ctx, cfg.BQProject, cfg.BQDataset)
	} else {
		repo, err = sqlite.Open(cfg.SQLitePath)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open repository")
	}
	defer repo.Close()

	var objects objectstore.Store
	if cfg.GCSBucket != "" {
		gcs, err := objectstore.NewGCSStore(ctx, cfg.GCSBucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create GCS client")
		}
		defer gcs.Close()
		objects = gcs
	} else {
		local, err := objectstore.NewLocalStore(*localDir)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open local object store")
		}
		objects = local
	}

	log.Info().Str("statement_id", *statementID).Msg("Starting ingestion")

	rows, err := ingest.SliceStatement(ctx, repo, objects, *statementID)
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}

	fmt.Printf("Ingestion completed successfully: %d rows.\n", rows)
}
