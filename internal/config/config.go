package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreSQLite   = "sqlite"
	StoreBigQuery = "bigquery"
)

// DefaultModelName is the Gemini model used for mapping suggestions.
const DefaultModelName = "gemini-2.5-flash"

// Config is the process configuration read from the environment.
type Config struct {
	Port string

	Store      string
	SQLitePath string
	BQProject  string
	BQDataset  string

	GCSBucket   string
	GeminiModel string

	NotionToken string
	NotionDBID  string

	EngineWorkers int

	LogLevel  string
	LogFormat string
}

// Load reads an optional .env file, or the files named in envFiles which must
// exist, and then the environment. Variables already set in the environment
// take precedence.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && (len(envFiles) > 0 || !errors.Is(err, os.ErrNotExist)) {
		return nil, fmt.Errorf("Load: reading env file: %w", err)
	}

	workers, err := intEnv("ENGINE_WORKERS", 0)
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}

	cfg := &Config{
		Port:          stringEnv("PORT", "8080"),
		Store:         strings.ToLower(stringEnv("STORE", StoreSQLite)),
		SQLitePath:    stringEnv("SQLITE_PATH", "data/superbank.db"),
		BQProject:     os.Getenv("BQ_PROJECT"),
		BQDataset:     stringEnv("BQ_DATASET", "superbank"),
		GCSBucket:     os.Getenv("GCS_BUCKET"),
		GeminiModel:   stringEnv("GEMINI_MODEL", DefaultModelName),
		NotionToken:   os.Getenv("NOTION_TOKEN"),
		NotionDBID:    os.Getenv("NOTION_DB_ID"),
		EngineWorkers: workers,
		LogLevel:      stringEnv("LOG_LEVEL", "info"),
		LogFormat:     stringEnv("LOG_FORMAT", "console"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("Validate: SQLITE_PATH is required for the sqlite store")
		}
	case StoreBigQuery:
		if c.BQProject == "" {
			return fmt.Errorf("Validate: BQ_PROJECT is required for the bigquery store")
		}
	default:
		return fmt.Errorf("Validate: unknown STORE %q", c.Store)
	}
	if c.EngineWorkers < 0 {
		return fmt.Errorf("Validate: ENGINE_WORKERS must not be negative")
	}
	return nil
}

func stringEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
