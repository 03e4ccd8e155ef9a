package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/superbank/internal/domain"
	"github.com/dvloznov/superbank/internal/store"
	"google.golang.org/api/iterator"
)

// ListBankMappings returns every stored bank mapping ordered by name.
func (r *Repository) ListBankMappings(ctx context.Context) ([]domain.BankMapping, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT name, bank_id, payload, updated_ts
		FROM %s
		ORDER BY name
	`, r.table(bankMappingsTable)))

	rows, err := readBankMappings(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListBankMappings: %w", err)
	}
	return rows, nil
}

// GetBankMapping returns the mapping named name or store.ErrNotFound.
func (r *Repository) GetBankMapping(ctx context.Context, name string) (*domain.BankMapping, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT name, bank_id, payload, updated_ts
		FROM %s
		WHERE name = @name
		LIMIT 1
	`, r.table(bankMappingsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "name", Value: name},
	}

	rows, err := readBankMappings(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("GetBankMapping: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("GetBankMapping: %q: %w", name, store.ErrNotFound)
	}
	return &rows[0], nil
}

// SaveBankMapping inserts or replaces the mapping with the same name.
func (r *Repository) SaveBankMapping(ctx context.Context, m domain.BankMapping) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("SaveBankMapping: %w", err)
	}
	row, err := toBankMappingRow(m, time.Now())
	if err != nil {
		return fmt.Errorf("SaveBankMapping: %w", err)
	}

	q := r.client.Query(fmt.Sprintf(`
		MERGE %s T
		USING (SELECT @name AS name, @bank_id AS bank_id, @payload AS payload, @updated_ts AS updated_ts) S
		ON T.name = S.name
		WHEN MATCHED THEN
		  UPDATE SET bank_id = S.bank_id, payload = S.payload, updated_ts = S.updated_ts
		WHEN NOT MATCHED THEN
		  INSERT (name, bank_id, payload, updated_ts)
		  VALUES (S.name, S.bank_id, S.payload, S.updated_ts)
	`, r.table(bankMappingsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "name", Value: row.Name},
		{Name: "bank_id", Value: row.BankID},
		{Name: "payload", Value: row.Payload},
		{Name: "updated_ts", Value: row.UpdatedTS.Timestamp},
	}

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("SaveBankMapping: %w", err)
	}
	return nil
}

func readBankMappings(ctx context.Context, q *bigquery.Query) ([]domain.BankMapping, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}

	var out []domain.BankMapping
	for {
		var row BankMappingRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}
		m, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
