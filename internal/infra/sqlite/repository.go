// Package sqlite implements store.Repository on a local SQLite file via gorm.
package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvloznov/superbank/internal/domain"
	"github.com/dvloznov/superbank/internal/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

const insertBatchSize = 500

type Repository struct {
	db *gorm.DB
}

var _ store.Repository = (*Repository)(nil)

// Open opens (creating if needed) the database at path and migrates the schema.
func Open(path string) (*Repository, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("Open: creating directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("Open: failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&BankMappingModel{}, &TagModel{}, &StatementModel{}, &RawTransactionModel{}); err != nil {
		return nil, fmt.Errorf("Open: failed to migrate schema: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("Close: %w", err)
	}
	return sqlDB.Close()
}

func (r *Repository) ListBankMappings(ctx context.Context) ([]domain.BankMapping, error) {
	var models []BankMappingModel
	if err := r.db.WithContext(ctx).Order("name").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("ListBankMappings: %w", err)
	}

	out := make([]domain.BankMapping, 0, len(models))
	for _, m := range models {
		bm, err := decodeBankMapping(m)
		if err != nil {
			return nil, fmt.Errorf("ListBankMappings: %w", err)
		}
		out = append(out, bm)
	}
	return out, nil
}

func (r *Repository) GetBankMapping(ctx context.Context, name string) (*domain.BankMapping, error) {
	var m BankMappingModel
	err := r.db.WithContext(ctx).First(&m, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("GetBankMapping: %q: %w", name, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetBankMapping: %w", err)
	}

	bm, err := decodeBankMapping(m)
	if err != nil {
		return nil, fmt.Errorf("GetBankMapping: %w", err)
	}
	return &bm, nil
}

func (r *Repository) SaveBankMapping(ctx context.Context, bm domain.BankMapping) error {
	if err := bm.Validate(); err != nil {
		return fmt.Errorf("SaveBankMapping: %w", err)
	}
	payload, err := json.Marshal(bm)
	if err != nil {
		return fmt.Errorf("SaveBankMapping: encoding: %w", err)
	}

	m := BankMappingModel{Name: bm.Name, BankID: bm.BankID, Payload: string(payload)}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&m).Error
	if err != nil {
		return fmt.Errorf("SaveBankMapping: %w", err)
	}
	return nil
}

func (r *Repository) ListTags(ctx context.Context) ([]domain.Tag, error) {
	var models []TagModel
	if err := r.db.WithContext(ctx).Order("name, id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("ListTags: %w", err)
	}

	tags := make([]domain.Tag, 0, len(models))
	for _, m := range models {
		tags = append(tags, domain.Tag{ID: m.ID, Name: m.Name, Color: m.Color})
	}
	return tags, nil
}

func (r *Repository) SaveTag(ctx context.Context, tag domain.Tag) error {
	if strings.TrimSpace(tag.ID) == "" || strings.TrimSpace(tag.Name) == "" {
		return fmt.Errorf("SaveTag: id and name are required")
	}
	m := TagModel{ID: tag.ID, Name: tag.Name, Color: tag.Color}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&m).Error
	if err != nil {
		return fmt.Errorf("SaveTag: %w", err)
	}
	return nil
}

func (r *Repository) ListTransactions(ctx context.Context, filter store.TransactionFilter) ([]domain.RawTransaction, error) {
	q := r.db.WithContext(ctx).Model(&RawTransactionModel{})
	if len(filter.BankIDs) > 0 {
		q = q.Where("bank_id IN ?", filter.BankIDs)
	}
	if len(filter.AccountIDs) > 0 {
		q = q.Where("account_id IN ?", filter.AccountIDs)
	}
	if len(filter.StatementIDs) > 0 {
		q = q.Where("statement_id IN ?", filter.StatementIDs)
	}

	var models []RawTransactionModel
	if err := q.Order("seq").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}

	txs := make([]domain.RawTransaction, 0, len(models))
	for _, m := range models {
		var tx domain.RawTransaction
		if err := json.Unmarshal([]byte(m.Payload), &tx); err != nil {
			return nil, fmt.Errorf("ListTransactions: transaction %q: %w", m.TransactionID, err)
		}
		tx.ID = m.TransactionID
		txs = append(txs, tx)
	}
	return txs, nil
}

// InsertTransactions writes txs in one database transaction.
func (r *Repository) InsertTransactions(ctx context.Context, txs []domain.RawTransaction) error {
	if len(txs) == 0 {
		return nil
	}

	models := make([]RawTransactionModel, 0, len(txs))
	for _, tx := range txs {
		payload, err := json.Marshal(tx)
		if err != nil {
			return fmt.Errorf("InsertTransactions: encoding %q: %w", tx.ID, err)
		}
		models = append(models, RawTransactionModel{
			TransactionID: tx.ID,
			BankID:        tx.BankID,
			AccountID:     tx.AccountID,
			StatementID:   tx.StatementID,
			Payload:       string(payload),
		})
	}

	err := r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return db.CreateInBatches(models, insertBatchSize).Error
	})
	if err != nil {
		return fmt.Errorf("InsertTransactions: %w", err)
	}
	return nil
}

func (r *Repository) InsertStatement(ctx context.Context, st *store.Statement) error {
	if st.UploadedAt.IsZero() {
		st.UploadedAt = time.Now()
	}
	if st.Status == "" {
		st.Status = store.StatusPending
	}
	m := StatementModel{
		ID:         st.ID,
		BankName:   st.BankName,
		AccountID:  st.AccountID,
		ObjectURI:  st.ObjectURI,
		Filename:   st.Filename,
		Status:     string(st.Status),
		Error:      st.Error,
		RowCount:   st.RowCount,
		UploadedAt: st.UploadedAt,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("InsertStatement: %w", err)
	}
	return nil
}

func (r *Repository) GetStatement(ctx context.Context, id string) (*store.Statement, error) {
	var m StatementModel
	err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("GetStatement: %q: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetStatement: %w", err)
	}
	return &store.Statement{
		ID:         m.ID,
		BankName:   m.BankName,
		AccountID:  m.AccountID,
		ObjectURI:  m.ObjectURI,
		Filename:   m.Filename,
		Status:     store.StatementStatus(m.Status),
		Error:      m.Error,
		RowCount:   m.RowCount,
		UploadedAt: m.UploadedAt,
	}, nil
}

func (r *Repository) UpdateStatementStatus(ctx context.Context, id string, status store.StatementStatus, rowCount int, cause error) error {
	res := r.db.WithContext(ctx).
		Model(&StatementModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     string(status),
			"row_count":  rowCount,
			"error":      store.ErrorMessage(cause),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("UpdateStatementStatus: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("UpdateStatementStatus: %q: %w", id, store.ErrNotFound)
	}
	return nil
}

func decodeBankMapping(m BankMappingModel) (domain.BankMapping, error) {
	var bm domain.BankMapping
	if err := json.Unmarshal([]byte(m.Payload), &bm); err != nil {
		return bm, fmt.Errorf("bank mapping %q: %w", m.Name, err)
	}
	bm.Name = m.Name
	bm.BankID = m.BankID
	return bm, nil
}
