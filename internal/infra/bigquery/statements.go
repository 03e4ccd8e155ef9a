package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/superbank/internal/store"
)

type StatementRow struct {
	StatementID string              `bigquery:"statement_id"` // REQUIRED
	BankName    string              `bigquery:"bank_name"`    // REQUIRED
	AccountID   bigquery.NullString `bigquery:"account_id"`   // NULLABLE
	ObjectURI   string              `bigquery:"object_uri"`   // REQUIRED
	Filename    bigquery.NullString `bigquery:"filename"`     // NULLABLE

	Status       string              `bigquery:"status"`        // REQUIRED
	ErrorMessage bigquery.NullString `bigquery:"error_message"` // NULLABLE
	RowCount     int64               `bigquery:"row_count"`     // REQUIRED

	UploadDate civil.Date             `bigquery:"upload_date"` // REQUIRED, partition column
	UploadTS   time.Time              `bigquery:"upload_ts"`   // REQUIRED
	UpdatedTS  bigquery.NullTimestamp `bigquery:"updated_ts"`  // NULLABLE
}

func toStatementRow(st *store.Statement) *StatementRow {
	uploaded := st.UploadedAt.UTC()
	return &StatementRow{
		StatementID:  st.ID,
		BankName:     st.BankName,
		AccountID:    nullString(st.AccountID),
		ObjectURI:    st.ObjectURI,
		Filename:     nullString(st.Filename),
		Status:       string(st.Status),
		ErrorMessage: nullString(st.Error),
		RowCount:     int64(st.RowCount),
		UploadDate:   civil.DateOf(uploaded),
		UploadTS:     uploaded,
	}
}

func (r *StatementRow) toDomain() *store.Statement {
	st := &store.Statement{
		ID:         r.StatementID,
		BankName:   r.BankName,
		ObjectURI:  r.ObjectURI,
		Status:     store.StatementStatus(r.Status),
		RowCount:   int(r.RowCount),
		UploadedAt: r.UploadTS,
	}
	if r.AccountID.Valid {
		st.AccountID = r.AccountID.StringVal
	}
	if r.Filename.Valid {
		st.Filename = r.Filename.StringVal
	}
	if r.ErrorMessage.Valid {
		st.Error = r.ErrorMessage.StringVal
	}
	return st
}
