// Package superbank assembles the consolidated view across every bank: it
// builds the canonical header, normalizes transactions, filters rows and
// summarizes them.
package superbank

import (
	"context"
	"fmt"

	"github.com/dvloznov/superbank/internal/analytics"
	"github.com/dvloznov/superbank/internal/domain"
	"github.com/dvloznov/superbank/internal/normalize"
	"github.com/dvloznov/superbank/internal/tags"
	"golang.org/x/sync/errgroup"
)

// Config tunes an Engine.
type Config struct {
	// Workers bounds normalization and aggregation fan-out. Zero or one runs
	// sequentially.
	Workers int

	// DateColumns are rewritten to dd/mm/yyyy in displayed rows.
	DateColumns []string

	// Analytics defaults to analytics.DefaultOptions when nil.
	Analytics *analytics.Options
}

// Input is the materialized snapshot a view is computed from.
type Input struct {
	Transactions []domain.RawTransaction
	Mappings     []domain.BankMapping
	Tags         []domain.Tag

	// ExtraColumns are appended to the derived header, e.g. columns of
	// banks that have no mapping yet.
	ExtraColumns []string
}

// View is the Super Bank table plus its summary.
type View struct {
	Header  domain.Header         `json:"header"`
	Rows    []domain.CanonicalRow `json:"rows"`
	Count   int                   `json:"count"`
	Summary analytics.Summary     `json:"summary"`
}

// Engine is safe for concurrent use.
type Engine struct {
	workers    int
	normalizer *normalize.Normalizer
	aggregator *analytics.Aggregator
}

// New builds an Engine from cfg.
func New(cfg Config) *Engine {
	opts := analytics.DefaultOptions()
	if cfg.Analytics != nil {
		opts = *cfg.Analytics
	}
	return &Engine{
		workers:    cfg.Workers,
		normalizer: normalize.New(normalize.WithDateColumns(cfg.DateColumns...)),
		aggregator: analytics.New(opts),
	}
}

// BuildHeader derives the Super Bank header from every mapping: mapped
// canonical columns in each bank's raw header order, then columns set by
// conditions, then extra, then Tags. A bank with no column mapping
// contributes its raw header as is.
func BuildHeader(mappings []domain.BankMapping, extra ...string) domain.Header {
	var cols []string
	for i := range mappings {
		m := &mappings[i]
		if len(m.Mapping) == 0 {
			cols = append(cols, m.Header...)
		}
		listed := make(map[string]bool, len(m.Header))
		for _, raw := range m.Header {
			listed[raw] = true
			if canonical, ok := m.Mapping[raw]; ok {
				cols = append(cols, canonical)
			}
		}
		for _, raw := range sortedKeys(m.Mapping) {
			if !listed[raw] {
				cols = append(cols, m.Mapping[raw])
			}
		}
		cols = append(cols, m.RuleTargets()...)
	}
	cols = append(cols, extra...)
	return domain.NewHeader(cols...)
}

// Rows normalizes every transaction against its bank's mapping. Output order
// matches txs.
func (e *Engine) Rows(ctx context.Context, txs []domain.RawTransaction, registry domain.Registry, header domain.Header, catalog *tags.Catalog) ([]domain.CanonicalRow, error) {
	rows := make([]domain.CanonicalRow, len(txs))
	normalizeOne := func(i int) {
		var mapping *domain.BankMapping
		if registry != nil {
			mapping, _ = registry.Lookup(txs[i].BankID)
		}
		rows[i] = e.normalizer.Normalize(txs[i], mapping, header, catalog)
	}

	if e.workers <= 1 {
		for i := range txs {
			normalizeOne(i)
		}
		return rows, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range txs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			normalizeOne(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("Rows: normalizing transactions: %w", err)
	}
	return rows, nil
}

// Summarize aggregates rows using the engine's analytics options.
func (e *Engine) Summarize(ctx context.Context, rows []domain.CanonicalRow, txs []domain.RawTransaction, registry domain.Registry) (analytics.Summary, error) {
	s, err := e.aggregator.AggregateParallel(ctx, rows, txs, registry, e.workers)
	if err != nil {
		return analytics.Summary{}, fmt.Errorf("Summarize: %w", err)
	}
	return s, nil
}

// Build computes the filtered Super Bank view for in.
func (e *Engine) Build(ctx context.Context, in Input, filter Filter) (*View, error) {
	registry := domain.NewMapRegistry(in.Mappings)
	catalog := tags.NewCatalog(in.Tags)
	header := BuildHeader(in.Mappings, in.ExtraColumns...)

	rows, err := e.Rows(ctx, in.Transactions, registry, header, catalog)
	if err != nil {
		return nil, fmt.Errorf("Build: %w", err)
	}
	rows = filter.Apply(rows, in.Transactions)

	summary, err := e.Summarize(ctx, rows, in.Transactions, registry)
	if err != nil {
		return nil, fmt.Errorf("Build: %w", err)
	}

	return &View{
		Header:  header,
		Rows:    rows,
		Count:   len(rows),
		Summary: summary,
	}, nil
}
