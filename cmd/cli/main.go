package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dvloznov/superbank/internal/config"
	"github.com/dvloznov/superbank/internal/domain"
	infraBQ "github.com/dvloznov/superbank/internal/infra/bigquery"
	"github.com/dvloznov/superbank/internal/infra/sqlite"
	"github.com/dvloznov/superbank/internal/ingest"
	"github.com/dvloznov/superbank/internal/logger"
	"github.com/dvloznov/superbank/internal/mappingai"
	"github.com/dvloznov/superbank/internal/notionsync"
	"github.com/dvloznov/superbank/internal/objectstore"
	"github.com/dvloznov/superbank/internal/store"
	"github.com/dvloznov/superbank/internal/superbank"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "normalize":
		runNormalize(log)
	case "analytics":
		runAnalytics(log)
	case "slice":
		runSlice(log)
	case "seed":
		runSeed(log)
	case "upload":
		runUpload(log)
	case "suggest":
		runSuggest(log)
	case "sync-notion":
		runSyncNotion(log)
	case "migrate":
		runMigrate(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Super Bank CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  normalize    Print the Super Bank table for a catalog and transactions file")
	fmt.Println("  analytics    Print the summary for a catalog and transactions file")
	fmt.Println("  slice        Slice a local CSV export into raw transactions JSON")
	fmt.Println("  seed         Save the banks and tags of a catalog file into the store")
	fmt.Println("  upload       Upload a CSV statement and slice it into the store")
	fmt.Println("  suggest      Ask Gemini for a column mapping for a CSV export")
	fmt.Println("  sync-notion  Mirror the Super Bank table into a Notion database")
	fmt.Println("  migrate      Apply BigQuery schema migrations")
	fmt.Println("  help         Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// viewFlags are shared by the commands that build the Super Bank view.
type viewFlags struct {
	catalog      *string
	transactions *string
	bank         *string
	tag          *string
	from         *string
	to           *string
	search       *string
	workers      *int
}

func addViewFlags(fs *flag.FlagSet) viewFlags {
	return viewFlags{
		catalog:      fs.String("catalog", "", "Catalog file with banks and tags (YAML or JSON)"),
		transactions: fs.String("transactions", "", "JSON array of raw transactions"),
		bank:         fs.String("bank", "", "Comma separated bank ids to keep"),
		tag:          fs.String("tag", "", "Comma separated tag ids or names to keep"),
		from:         fs.String("from", "", "Earliest row date (inclusive)"),
		to:           fs.String("to", "", "Latest row date (inclusive)"),
		search:       fs.String("q", "", "Case-insensitive text search across all cells"),
		workers:      fs.Int("workers", 0, "Parallel workers (0 runs sequentially)"),
	}
}

func (v viewFlags) build(ctx context.Context) (*superbank.View, error) {
	if *v.catalog == "" || *v.transactions == "" {
		return nil, fmt.Errorf("-catalog and -transactions are required")
	}
	catalog, err := config.LoadCatalogFile(*v.catalog)
	if err != nil {
		return nil, err
	}
	txs, err := config.LoadTransactionsFile(*v.transactions)
	if err != nil {
		return nil, err
	}
	filter, err := buildFilter(*v.bank, *v.tag, *v.from, *v.to, *v.search)
	if err != nil {
		return nil, err
	}

	engine := superbank.New(superbank.Config{Workers: *v.workers, DateColumns: []string{"Date"}})
	return engine.Build(ctx, superbank.Input{
		Transactions: txs,
		Mappings:     catalog.Banks,
		Tags:         catalog.Tags,
	}, filter)
}

func runNormalize(log zerolog.Logger) {
	fs := flag.NewFlagSet("normalize", flag.ExitOnError)
	vf := addViewFlags(fs)
	fs.Parse(os.Args[2:])

	ctx := logger.WithContext(context.Background(), log)
	view, err := vf.build(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build Super Bank view")
	}

	if err := writeJSON(os.Stdout, map[string]interface{}{
		"header": view.Header,
		"rows":   view.Rows,
		"count":  view.Count,
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to write output")
	}
}

func runAnalytics(log zerolog.Logger) {
	fs := flag.NewFlagSet("analytics", flag.ExitOnError)
	vf := addViewFlags(fs)
	fs.Parse(os.Args[2:])

	ctx := logger.WithContext(context.Background(), log)
	view, err := vf.build(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build Super Bank view")
	}

	if err := writeJSON(os.Stdout, view.Summary); err != nil {
		log.Fatal().Err(err).Msg("Failed to write output")
	}
}

func runSlice(log zerolog.Logger) {
	fs := flag.NewFlagSet("slice", flag.ExitOnError)
	catalogPath := fs.String("catalog", "", "Catalog file with bank mappings (required)")
	bankName := fs.String("bank", "", "Bank name in the catalog (required)")
	filePath := fs.String("file", "", "Path to the CSV export (required)")
	accountID := fs.String("account", "", "Account id stamped on every row")
	statementID := fs.String("statement", "", "Statement id stamped on every row (defaults to a new uuid)")
	fs.Parse(os.Args[2:])

	if *catalogPath == "" || *bankName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli slice -catalog FILE -bank NAME -file CSV")
	}

	catalog, err := config.LoadCatalogFile(*catalogPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load catalog")
	}
	mapping, ok := domain.NewMapRegistry(catalog.Banks).Lookup(*bankName)
	if !ok {
		log.Fatal().Str("bank", *bankName).Msg("Bank not found in catalog")
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read CSV")
	}

	if *statementID == "" {
		*statementID = uuid.New().String()
	}
	bankID := mapping.BankID
	if bankID == "" {
		bankID = mapping.Name
	}

	txs, err := ingest.SliceCSV(data, mapping, ingest.SliceMeta{
		BankID:      bankID,
		AccountID:   *accountID,
		StatementID: *statementID,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to slice statement")
	}

	log.Info().Int("rows", len(txs)).Str("statement_id", *statementID).Msg("Statement sliced")
	if err := writeJSON(os.Stdout, txs); err != nil {
		log.Fatal().Err(err).Msg("Failed to write output")
	}
}

func runSeed(log zerolog.Logger) {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	catalogPath := fs.String("catalog", "", "Catalog file with banks and tags (required)")
	fs.Parse(os.Args[2:])

	if *catalogPath == "" {
		log.Fatal().Msg("Error: -catalog is required")
	}

	ctx, repo := openStore(log)
	defer repo.Close()

	catalog, err := config.LoadCatalogFile(*catalogPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load catalog")
	}

	for _, bank := range catalog.Banks {
		if err := repo.SaveBankMapping(ctx, bank); err != nil {
			log.Fatal().Err(err).Str("bank", bank.Name).Msg("Failed to save bank mapping")
		}
	}
	for _, tag := range catalog.Tags {
		if err := repo.SaveTag(ctx, tag); err != nil {
			log.Fatal().Err(err).Str("tag", tag.ID).Msg("Failed to save tag")
		}
	}

	fmt.Printf("Seeded %d banks and %d tags.\n", len(catalog.Banks), len(catalog.Tags))
}

func runUpload(log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bankName := fs.String("bank", "", "Bank name with a saved mapping (required)")
	filePath := fs.String("file", "", "Path to the CSV export (required)")
	accountID := fs.String("account", "", "Account id stamped on every row")
	localDir := fs.String("local-dir", "data/uploads", "Directory for statements when GCS_BUCKET is unset")
	fs.Parse(os.Args[2:])

	if *bankName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bank NAME -file CSV")
	}

	ctx, repo := openStore(log)
	defer repo.Close()
	cfg := loadConfig(log)

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

	f, err := os.Open(*filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open CSV")
	}
	defer f.Close()

	statementID := uuid.New().String()
	filename := filepath.Base(*filePath)
	uri, err := objects.Put(ctx, objectstore.ObjectName(*bankName, statementID, filename), f)
	if err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	if err := repo.InsertStatement(ctx, &store.Statement{
		ID:         statementID,
		BankName:   *bankName,
		AccountID:  *accountID,
		ObjectURI:  uri,
		Filename:   filename,
		Status:     store.StatusPending,
		UploadedAt: time.Now().UTC(),
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to save statement metadata")
	}

	rows, err := ingest.SliceStatement(ctx, repo, objects, statementID)
	if err != nil {
		log.Fatal().Err(err).Str("statement_id", statementID).Msg("Slicing failed")
	}

	fmt.Printf("Uploaded %s to %s and sliced %d rows (statement %s).\n", *filePath, uri, rows, statementID)
}

func runSuggest(log zerolog.Logger) {
	fs := flag.NewFlagSet("suggest", flag.ExitOnError)
	bankName := fs.String("bank", "", "Bank name (required)")
	filePath := fs.String("file", "", "Path to a CSV export of the bank (required)")
	catalogPath := fs.String("catalog", "", "Catalog whose Super Bank header is the target")
	canonical := fs.String("canonical", "Date,Description,Amount,Type,Notes", "Comma separated target columns when no catalog is given")
	sampleRows := fs.Int("sample", 5, "Number of example rows sent with the prompt")
	fs.Parse(os.Args[2:])

	if *bankName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli suggest -bank NAME -file CSV")
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read CSV")
	}
	header, sample, err := ingest.Preview(data, *sampleRows)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read CSV header")
	}

	targets := splitList(*canonical)
	if *catalogPath != "" {
		catalog, err := config.LoadCatalogFile(*catalogPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load catalog")
		}
		targets = targets[:0]
		for _, col := range superbank.BuildHeader(catalog.Banks) {
			if col != domain.ColumnTags {
				targets = append(targets, col)
			}
		}
	}

	cfg := loadConfig(log)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	gen, err := mappingai.NewGeminiGenerator(ctx, cfg.GeminiModel)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	suggestion, err := mappingai.NewGeminiSuggester(gen).SuggestMapping(ctx, mappingai.Request{
		BankName:  *bankName,
		Header:    header,
		Sample:    sample,
		Canonical: targets,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Mapping suggestion failed")
	}

	if err := writeJSON(os.Stdout, domain.BankMapping{
		Name:    *bankName,
		Header:  header,
		Mapping: suggestion,
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to write output")
	}
}

func runSyncNotion(log zerolog.Logger) {
	fs := flag.NewFlagSet("sync-notion", flag.ExitOnError)
	vf := addViewFlags(fs)
	dryRun := fs.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	fs.Parse(os.Args[2:])

	cfg := loadConfig(log)
	if cfg.NotionToken == "" || cfg.NotionDBID == "" {
		log.Fatal().Msg("Error: NOTION_TOKEN and NOTION_DB_ID must be set")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	var view *superbank.View
	var err error
	if *vf.catalog != "" || *vf.transactions != "" {
		view, err = vf.build(ctx)
	} else {
		view, err = buildFromStore(ctx, cfg, vf)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build Super Bank view")
	}

	res, err := notionsync.SyncRows(ctx, notionsync.NewNotionClient(cfg.NotionToken), cfg.NotionDBID, view.Rows, view.Header, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Sync completed: %d created, %d updated, %d archived, %d failed.\n",
		res.Created, res.Updated, res.Archived, res.Failed)
}

func runMigrate(log zerolog.Logger) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	appliedBy := fs.String("applied-by", "superbank-cli", "Name of the tool applying migrations")
	fs.Parse(os.Args[2:])

	cfg := loadConfig(log)
	if cfg.Store != config.StoreBigQuery {
		fmt.Println("The sqlite store migrates itself when opened; nothing to do.")
		return
	}

	ctx := logger.WithContext(context.Background(), log)
	repo, err := infraBQ.NewRepository(ctx, cfg.BQProject, cfg.BQDataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer repo.Close()

	applied, err := infraBQ.Migrate(ctx, repo.Client(), cfg.BQDataset, *appliedBy)
	if err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}

	fmt.Printf("Applied %d migration(s) to %s.%s.\n", applied, cfg.BQProject, cfg.BQDataset)
}

func loadConfig(log zerolog.Logger) *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	return cfg
}

// openStore opens the configured repository and returns a context carrying log.
func openStore(log zerolog.Logger) (context.Context, store.Repository) {
	cfg := loadConfig(log)
	ctx := logger.WithContext(context.Background(), log)

	var (
		repo store.Repository
		err  error
	)
	switch cfg.Store {
	case config.StoreBigQuery:
		repo, err = infraBQ.NewRepository(ctx, cfg.BQProject, cfg.BQDataset)
	default:
		repo, err = sqlite.Open(cfg.SQLitePath)
	}
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.Store).Msg("Failed to open repository")
	}
	return ctx, repo
}

func buildFromStore(ctx context.Context, cfg *config.Config, vf viewFlags) (*superbank.View, error) {
	_, repo := openStore(logger.FromContext(ctx))
	defer repo.Close()

	filter, err := buildFilter(*vf.bank, *vf.tag, *vf.from, *vf.to, *vf.search)
	if err != nil {
		return nil, err
	}

	mappings, err := repo.ListBankMappings(ctx)
	if err != nil {
		return nil, err
	}
	tagList, err := repo.ListTags(ctx)
	if err != nil {
		return nil, err
	}
	txs, err := repo.ListTransactions(ctx, store.TransactionFilter{BankIDs: filter.BankIDs})
	if err != nil {
		return nil, err
	}

	engine := superbank.New(superbank.Config{Workers: cfg.EngineWorkers, DateColumns: []string{"Date"}})
	return engine.Build(ctx, superbank.Input{
		Transactions: txs,
		Mappings:     mappings,
		Tags:         tagList,
	}, filter)
}
