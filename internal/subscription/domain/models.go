package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Subscription is the fee schedule agreed at signup. Rows are never updated.
type Subscription struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	AccountID     snowflake.ID    `gorm:"not null;index" json:"account_id"`
	SetupAmount   decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"setup_amount"`
	MonthlyAmount decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"monthly_amount"`
	PaidAt        time.Time       `gorm:"not null" json:"paid_at"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}
