package bigquery

import (
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/superbank/internal/domain"
)

// RawTransactionRow stores one sliced statement row. The identifying columns
// are denormalized out of payload for filtering; payload holds the full
// transaction including its tags and bank-specific fields.
type RawTransactionRow struct {
	TransactionID string              `bigquery:"transaction_id"` // REQUIRED
	BankID        bigquery.NullString `bigquery:"bank_id"`        // NULLABLE
	AccountID     bigquery.NullString `bigquery:"account_id"`     // NULLABLE
	StatementID   bigquery.NullString `bigquery:"statement_id"`   // NULLABLE
	LineNo        int64               `bigquery:"line_no"`        // REQUIRED

	Payload string `bigquery:"payload"` // REQUIRED JSON text

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

func toRawTransactionRow(tx domain.RawTransaction, lineNo int, now time.Time) (*RawTransactionRow, error) {
	payload, err := json.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("toRawTransactionRow: encoding %q: %w", tx.ID, err)
	}
	return &RawTransactionRow{
		TransactionID: tx.ID,
		BankID:        nullString(tx.BankID),
		AccountID:     nullString(tx.AccountID),
		StatementID:   nullString(tx.StatementID),
		LineNo:        int64(lineNo),
		Payload:       string(payload),
		CreatedTS:     now,
	}, nil
}

func (r *RawTransactionRow) toDomain() (domain.RawTransaction, error) {
	var tx domain.RawTransaction
	if err := json.Unmarshal([]byte(r.Payload), &tx); err != nil {
		return tx, fmt.Errorf("transaction %q: decoding payload: %w", r.TransactionID, err)
	}
	tx.ID = r.TransactionID
	return tx, nil
}
