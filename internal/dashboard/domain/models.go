package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Overview is the operator landing snapshot.
type Overview struct {
	Accounts          int64           `json:"accounts"`
	Partners          int64           `json:"partners"`
	Subscriptions     int64           `json:"subscriptions"`
	SignupsMTD        int64           `json:"signups_mtd"`
	CommissionMTD     decimal.Decimal `json:"commission_mtd"`
	CommissionEntries int64           `json:"commission_entries_mtd"`
	PeriodStart       time.Time       `json:"period_start"`
	PeriodEnd         time.Time       `json:"period_end"`
	GeneratedAt       time.Time       `json:"generated_at"`
}

type Service interface {
	Overview(ctx context.Context) (Overview, error)
}
