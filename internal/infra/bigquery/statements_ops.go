package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/superbank/internal/store"
	"google.golang.org/api/iterator"
)

// InsertStatement records an uploaded statement. It uses DML rather than the
// streaming inserter because the row is updated again once slicing finishes,
// and streamed rows cannot be modified while they sit in the buffer.
func (r *Repository) InsertStatement(ctx context.Context, st *store.Statement) error {
	if st.UploadedAt.IsZero() {
		st.UploadedAt = time.Now()
	}
	if st.Status == "" {
		st.Status = store.StatusPending
	}
	row := toStatementRow(st)

	q := r.client.Query(fmt.Sprintf(`
		INSERT %s (
			statement_id,
			bank_name,
			account_id,
			object_uri,
			filename,
			status,
			error_message,
			row_count,
			upload_date,
			upload_ts
		)
		VALUES (
			@statement_id,
			@bank_name,
			@account_id,
			@object_uri,
			@filename,
			@status,
			@error_message,
			@row_count,
			@upload_date,
			@upload_ts
		)
	`, r.table(statementsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "statement_id", Value: row.StatementID},
		{Name: "bank_name", Value: row.BankName},
		{Name: "account_id", Value: row.AccountID},
		{Name: "object_uri", Value: row.ObjectURI},
		{Name: "filename", Value: row.Filename},
		{Name: "status", Value: row.Status},
		{Name: "error_message", Value: row.ErrorMessage},
		{Name: "row_count", Value: row.RowCount},
		{Name: "upload_date", Value: row.UploadDate},
		{Name: "upload_ts", Value: row.UploadTS},
	}

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("InsertStatement: %w", err)
	}
	return nil
}

// GetStatement returns the statement with id or store.ErrNotFound.
func (r *Repository) GetStatement(ctx context.Context, id string) (*store.Statement, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT
			statement_id,
			bank_name,
			account_id,
			object_uri,
			filename,
			status,
			error_message,
			row_count,
			upload_date,
			upload_ts,
			updated_ts
		FROM %s
		WHERE statement_id = @statement_id
		LIMIT 1
	`, r.table(statementsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "statement_id", Value: id},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetStatement: query read: %w", err)
	}

	var row StatementRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, fmt.Errorf("GetStatement: %q: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetStatement: iter next: %w", err)
	}
	return row.toDomain(), nil
}

// UpdateStatementStatus sets status, row_count and error_message. A nil cause
// clears the error.
func (r *Repository) UpdateStatementStatus(ctx context.Context, id string, status store.StatementStatus, rowCount int, cause error) error {
	q := r.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    row_count = @row_count,
		    error_message = @error_message,
		    updated_ts = @updated_ts
		WHERE statement_id = @statement_id
	`, r.table(statementsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: string(status)},
		{Name: "row_count", Value: int64(rowCount)},
		{Name: "error_message", Value: store.ErrorMessage(cause)},
		{Name: "updated_ts", Value: time.Now()},
		{Name: "statement_id", Value: id},
	}

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("UpdateStatementStatus: %w", err)
	}
	return nil
}
