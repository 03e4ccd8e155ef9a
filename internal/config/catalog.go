package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dvloznov/superbank/internal/domain"
	"gopkg.in/yaml.v3"
)

// Catalog is an offline snapshot of bank mappings and tags, used by the CLI
// and to seed a local store.
type Catalog struct {
	Banks []domain.BankMapping `json:"banks" yaml:"banks"`
	Tags  []domain.Tag         `json:"tags" yaml:"tags"`
}

// LoadCatalogFile reads a catalog from YAML (.yaml, .yml) or JSON (anything
// else) and validates every bank mapping.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadCatalogFile: reading %q: %w", path, err)
	}

	var c Catalog
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("LoadCatalogFile: decoding yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("LoadCatalogFile: decoding json: %w", err)
		}
	}

	for i := range c.Banks {
		if err := c.Banks[i].Validate(); err != nil {
			return nil, fmt.Errorf("LoadCatalogFile: bank %d: %w", i+1, err)
		}
	}
	return &c, nil
}

// LoadTransactionsFile reads a JSON array of raw transactions.
func LoadTransactionsFile(path string) ([]domain.RawTransaction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadTransactionsFile: reading %q: %w", path, err)
	}
	var txs []domain.RawTransaction
	if err := json.Unmarshal(data, &txs); err != nil {
		return nil, fmt.Errorf("LoadTransactionsFile: decoding: %w", err)
	}
	return txs, nil
}
