package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type FeeType string

const (
	FeeTypeSetup   FeeType = "setup"
	FeeTypeMonthly FeeType = "monthly"
)

// MaxDepth is the number of referral levels that earn commission.
const MaxDepth = 3

var (
	directRate   = decimal.RequireFromString("0.10")
	indirectRate = decimal.RequireFromString("0.05")
)

// RateFor returns the commission rate for a chain level. Levels outside
// 1..MaxDepth earn nothing.
func RateFor(level int) decimal.Decimal {
	switch {
	case level == 1:
		return directRate
	case level >= 2 && level <= MaxDepth:
		return indirectRate
	default:
		return decimal.Zero
	}
}

// Amount is fee × rate rounded half away from zero to cents.
func Amount(fee, rate decimal.Decimal) decimal.Decimal {
	return fee.Mul(rate).Round(2)
}

// Entry is one append-only ledger row.
type Entry struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	RecipientID    snowflake.ID    `gorm:"not null;index" json:"recipient_id"`
	CustomerID     snowflake.ID    `gorm:"not null;index" json:"customer_id"`
	SubscriptionID snowflake.ID    `gorm:"not null" json:"subscription_id"`
	Level          int             `gorm:"not null" json:"level"`
	FeeType        FeeType         `gorm:"not null" json:"fee_type"`
	Rate           decimal.Decimal `gorm:"type:numeric(5,4);not null" json:"rate"`
	Amount         decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

type CustomerTotal struct {
	CustomerID snowflake.ID    `gorm:"column:customer_id"`
	Total      decimal.Decimal `gorm:"column:total"`
}
