package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EntryCursor positions keyset pagination over (created_at, id) descending.
type EntryCursor struct {
	CreatedAt time.Time
	ID        snowflake.ID
}

// Repository has no update or delete operations; the ledger is append-only.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *Entry) error
	ListByRecipient(ctx context.Context, db *gorm.DB, recipientID snowflake.ID, after *EntryCursor, limit int) ([]*Entry, error)
	ListForPeriod(ctx context.Context, db *gorm.DB, recipientID snowflake.ID, from, to time.Time) ([]*Entry, error)
	SumDirectByCustomer(ctx context.Context, db *gorm.DB, recipientID snowflake.ID, from, to time.Time) ([]CustomerTotal, error)
	SumIndirect(ctx context.Context, db *gorm.DB, recipientID snowflake.ID, from, to time.Time) (decimal.Decimal, error)
}
