package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/referrals/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, subscription *domain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (id, account_id, setup_amount, monthly_amount, paid_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		subscription.ID,
		subscription.AccountID,
		subscription.SetupAmount,
		subscription.MonthlyAmount,
		subscription.PaidAt,
		subscription.CreatedAt,
	).Error
}

func (r *repo) FindLatestByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (*domain.Subscription, error) {
	var subscription domain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT id, account_id, setup_amount, monthly_amount, paid_at, created_at
		 FROM subscriptions
		 WHERE account_id = ?
		 ORDER BY paid_at DESC, id DESC
		 LIMIT 1`,
		accountID,
	).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}
