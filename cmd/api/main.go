package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/superbank/internal/api/handlers"
	"github.com/dvloznov/superbank/internal/api/middleware"
	"github.com/dvloznov/superbank/internal/config"
	infraBQ "github.com/dvloznov/superbank/internal/infra/bigquery"
	"github.com/dvloznov/superbank/internal/infra/sqlite"
	"github.com/dvloznov/superbank/internal/jobs"
	"github.com/dvloznov/superbank/internal/jobs/inmemory"
	"github.com/dvloznov/superbank/internal/logger"
	"github.com/dvloznov/superbank/internal/mappingai"
	"github.com/dvloznov/superbank/internal/objectstore"
	"github.com/dvloznov/superbank/internal/store"
	"github.com/dvloznov/superbank/internal/superbank"
	"github.com/rs/zerolog"
)

func main() {
	// Parse command-line flags
	var (
		envFile  = flag.String("env", "", "Path to an env file (defaults to ./.env when present)")
		localDir = flag.String("local-dir", "data/uploads", "Directory for uploaded statements when GCS_BUCKET is unset")
	)
	flag.Parse()

	var envFiles []string
	if *envFile != "" {
		envFiles = append(envFiles, *envFile)
	}
	cfg, err := config.Load(envFiles...)
	if err != nil {
		boot := logger.New()
		boot.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	ctx := logger.WithContext(context.Background(), log)

	// Initialize repositories
	repo, err := openRepository(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.Store).Msg("Failed to open repository")
	}
	defer repo.Close()

	objects, closeObjects, err := openObjectStore(ctx, cfg, *localDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open object store")
	}
	defer closeObjects()

	var suggester mappingai.Suggester
	if gen, err := mappingai.NewGeminiGenerator(ctx, cfg.GeminiModel); err != nil {
		log.Warn().Err(err).Msg("Gemini unavailable - mapping suggestions will be disabled")
	} else {
		suggester = mappingai.NewGeminiSuggester(gen)
	}

	engine := superbank.New(superbank.Config{
		Workers:     cfg.EngineWorkers,
		DateColumns: []string{"Date"},
	})

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(inmemory.Options{BufferSize: 100}, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	go func() {
		log.Info().Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, jobs.NewSliceHandler(repo, objects)); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	// Initialize handlers
	mux := handlers.Router{
		SuperBank:  handlers.NewSuperBankHandler(repo, engine),
		Banks:      handlers.NewBanksHandler(repo, suggester),
		Tags:       handlers.NewTagsHandler(repo),
		Statements: handlers.NewStatementsHandler(repo, objects, jobQueue),
		Jobs:       handlers.NewJobsHandler(jobStore),
	}.Routes()

	// Apply middleware
	handler := middleware.Chain(mux,
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Logger(log),
		middleware.CORS,
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.Store).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}

func openRepository(ctx context.Context, cfg *config.Config) (store.Repository, error) {
	switch cfg.Store {
	case config.StoreBigQuery:
		return infraBQ.NewRepository(ctx, cfg.BQProject, cfg.BQDataset)
	default:
		return sqlite.Open(cfg.SQLitePath)
	}
}

// openObjectStore uses GCS when a bucket is configured and a local directory
// otherwise. The returned func releases the client.
func openObjectStore(ctx context.Context, cfg *config.Config, localDir string, log zerolog.Logger) (objectstore.Store, func(), error) {
	if cfg.GCSBucket == "" {
		log.Warn().Str("dir", localDir).Msg("No GCS bucket configured - statements are stored locally")
		local, err := objectstore.NewLocalStore(localDir)
		if err != nil {
			return nil, nil, err
		}
		return local, func() {}, nil
	}

	gcs, err := objectstore.NewGCSStore(ctx, cfg.GCSBucket)
	if err != nil {
		return nil, nil, err
	}
	return gcs, func() { gcs.Close() }, nil
}
