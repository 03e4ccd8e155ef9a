// Package bigquery implements store.Repository on top of BigQuery.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/superbank/internal/store"
)

const (
	bankMappingsTable    = "bank_mappings"
	tagsTable            = "tags"
	rawTransactionsTable = "raw_transactions"
	statementsTable      = "statements"
)

// Repository is the BigQuery implementation of store.Repository. It holds a
// shared client so every operation reuses one connection.
type Repository struct {
	client  *bigquery.Client
	dataset string
}

var _ store.Repository = (*Repository)(nil)

// NewRepository opens a BigQuery client for projectID and binds it to dataset.
func NewRepository(ctx context.Context, projectID, dataset string) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return NewRepositoryWithClient(client, dataset), nil
}

// NewRepositoryWithClient wraps an existing client.
func NewRepositoryWithClient(client *bigquery.Client, dataset string) *Repository {
	return &Repository{client: client, dataset: dataset}
}

// Client exposes the underlying client, e.g. for migrations.
func (r *Repository) Client() *bigquery.Client {
	return r.client
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// table returns a dataset-qualified, quoted table name for use in SQL.
func (r *Repository) table(name string) string {
	return qualify(r.dataset, name)
}

func qualify(dataset, table string) string {
	return fmt.Sprintf("`%s.%s`", dataset, table)
}

// runDML runs a DML or DDL statement and waits for it to finish.
func runDML(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
