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

// InsertTransactions streams a batch of raw transactions. Their position in
// txs is kept as line_no so listings preserve statement order.
func (r *Repository) InsertTransactions(ctx context.Context, txs []domain.RawTransaction) error {
	if len(txs) == 0 {
		return nil
	}

	now := time.Now()
	rows := make([]*RawTransactionRow, 0, len(txs))
	for i, tx := range txs {
		row, err := toRawTransactionRow(tx, i, now)
		if err != nil {
			return fmt.Errorf("InsertTransactions: %w", err)
		}
		rows = append(rows, row)
	}

	inserter := r.client.Dataset(r.dataset).Table(rawTransactionsTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertTransactions: inserting rows: %w", err)
	}
	return nil
}

// ListTransactions returns raw transactions matching filter in ingestion order.
func (r *Repository) ListTransactions(ctx context.Context, filter store.TransactionFilter) ([]domain.RawTransaction, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT
			transaction_id,
			bank_id,
			account_id,
			statement_id,
			line_no,
			payload,
			created_ts
		FROM %s
		WHERE (ARRAY_LENGTH(@bank_ids) = 0 OR bank_id IN UNNEST(@bank_ids))
		  AND (ARRAY_LENGTH(@account_ids) = 0 OR account_id IN UNNEST(@account_ids))
		  AND (ARRAY_LENGTH(@statement_ids) = 0 OR statement_id IN UNNEST(@statement_ids))
		ORDER BY created_ts, statement_id, line_no
	`, r.table(rawTransactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "bank_ids", Value: nonNil(filter.BankIDs)},
		{Name: "account_ids", Value: nonNil(filter.AccountIDs)},
		{Name: "statement_ids", Value: nonNil(filter.StatementIDs)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: query read: %w", err)
	}

	var txs []domain.RawTransaction
	for {
		var row RawTransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: iter next: %w", err)
		}
		tx, err := row.toDomain()
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}
