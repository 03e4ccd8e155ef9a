package bigquery

import (
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/superbank/internal/domain"
)

// BankMappingRow stores one bank mapping. The mapping body lives in payload as
// JSON so header, mapping and conditions round-trip without a nested schema.
type BankMappingRow struct {
	Name      string                 `bigquery:"name"`       // REQUIRED
	BankID    bigquery.NullString    `bigquery:"bank_id"`    // NULLABLE
	Payload   string                 `bigquery:"payload"`    // REQUIRED JSON text
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"` // NULLABLE
}

func toBankMappingRow(m domain.BankMapping, now time.Time) (*BankMappingRow, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("toBankMappingRow: encoding %q: %w", m.Name, err)
	}
	return &BankMappingRow{
		Name:      m.Name,
		BankID:    nullString(m.BankID),
		Payload:   string(payload),
		UpdatedTS: bigquery.NullTimestamp{Timestamp: now, Valid: true},
	}, nil
}

func (r *BankMappingRow) toDomain() (domain.BankMapping, error) {
	var m domain.BankMapping
	if err := json.Unmarshal([]byte(r.Payload), &m); err != nil {
		return m, fmt.Errorf("bank mapping %q: decoding payload: %w", r.Name, err)
	}
	m.Name = r.Name
	if r.BankID.Valid {
		m.BankID = r.BankID.StringVal
	}
	return m, nil
}
