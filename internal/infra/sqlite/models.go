package sqlite

import "time"

// BankMappingModel stores a bank mapping with its body as JSON text.
type BankMappingModel struct {
	Name      string `gorm:"primaryKey"`
	BankID    string `gorm:"index"`
	Payload   string `gorm:"not null"`
	UpdatedAt time.Time
}

func (BankMappingModel) TableName() string { return "bank_mappings" }

type TagModel struct {
	ID    string `gorm:"primaryKey"`
	Name  string `gorm:"not null"`
	Color string
}

func (TagModel) TableName() string { return "tags" }

// StatementModel tracks an uploaded CSV statement.
type StatementModel struct {
	ID         string `gorm:"primaryKey"`
	BankName   string `gorm:"index;not null"`
	AccountID  string
	ObjectURI  string `gorm:"not null"`
	Filename   string
	Status     string `gorm:"index;not null"`
	Error      string
	RowCount   int
	UploadedAt time.Time
	UpdatedAt  time.Time
}

func (StatementModel) TableName() string { return "statements" }

// RawTransactionModel stores one sliced row. Seq preserves insertion order.
type RawTransactionModel struct {
	Seq           uint   `gorm:"primaryKey;autoIncrement"`
	TransactionID string `gorm:"uniqueIndex;not null"`
	BankID        string `gorm:"index"`
	AccountID     string `gorm:"index"`
	StatementID   string `gorm:"index"`
	Payload       string `gorm:"not null"`
	CreatedAt     time.Time
}

func (RawTransactionModel) TableName() string { return "raw_transactions" }
