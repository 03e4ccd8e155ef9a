// Package store defines the persistence boundary for bank mappings, tags,
// statements and raw transactions. Implementations live under internal/infra.
package store

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/dvloznov/superbank/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// StatementStatus tracks an uploaded statement through slicing.
type StatementStatus string

const (
	StatusPending StatementStatus = "PENDING"
	StatusSliced  StatementStatus = "SLICED"
	StatusFailed  StatementStatus = "FAILED"
)

// Statement is an uploaded CSV export waiting to be, or already, sliced into
// raw transactions.
type Statement struct {
	ID         string          `json:"id"`
	BankName   string          `json:"bankName"`
	AccountID  string          `json:"accountId,omitempty"`
	ObjectURI  string          `json:"objectUri"`
	Filename   string          `json:"filename,omitempty"`
	Status     StatementStatus `json:"status"`
	Error      string          `json:"error,omitempty"`
	RowCount   int             `json:"rowCount"`
	UploadedAt time.Time       `json:"uploadedAt"`
}

// TransactionFilter narrows ListTransactions. Empty slices match everything.
type TransactionFilter struct {
	BankIDs      []string
	AccountIDs   []string
	StatementIDs []string
}

// Repository is implemented by every storage backend.
type Repository interface {
	ListBankMappings(ctx context.Context) ([]domain.BankMapping, error)
	GetBankMapping(ctx context.Context, name string) (*domain.BankMapping, error)
	SaveBankMapping(ctx context.Context, m domain.BankMapping) error

	ListTags(ctx context.Context) ([]domain.Tag, error)
	SaveTag(ctx context.Context, tag domain.Tag) error

	ListTransactions(ctx context.Context, filter TransactionFilter) ([]domain.RawTransaction, error)
	InsertTransactions(ctx context.Context, txs []domain.RawTransaction) error

	InsertStatement(ctx context.Context, st *Statement) error
	GetStatement(ctx context.Context, id string) (*Statement, error)
	UpdateStatementStatus(ctx context.Context, id string, status StatementStatus, rowCount int, cause error) error

	Close() error
}

// maxErrorLen caps the failure message stored with a statement.
const maxErrorLen = 2000

// ErrorMessage returns cause as text truncated for storage, or "" for nil.
func ErrorMessage(cause error) string {
	if cause == nil {
		return ""
	}
	msg := cause.Error()
	if len(msg) <= maxErrorLen {
		return msg
	}
	cut := maxErrorLen
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}
