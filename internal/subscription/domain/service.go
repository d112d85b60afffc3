package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type CreateSubscriptionRequest struct {
	AccountID     snowflake.ID
	SetupAmount   decimal.Decimal
	MonthlyAmount decimal.Decimal
}

type Service interface {
	Create(ctx context.Context, req CreateSubscriptionRequest) (Subscription, error)
	// Latest returns the most recently paid subscription, the one that
	// matters for commission computation.
	Latest(ctx context.Context, accountID snowflake.ID) (Subscription, error)
}

var (
	ErrInvalidAccount = errors.New("invalid_account")
	ErrInvalidAmount  = errors.New("invalid_amount")
	ErrNotFound       = errors.New("subscription_not_found")
)
