package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/referrals/internal/commission/domain"
	"gorm.io/gorm"
)

const entryColumns = `id, recipient_id, customer_id, subscription_id, level, fee_type, rate, amount, created_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.Entry) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO commission_entries (`+entryColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.RecipientID,
		entry.CustomerID,
		entry.SubscriptionID,
		entry.Level,
		entry.FeeType,
		entry.Rate,
		entry.Amount,
		entry.CreatedAt,
	).Error
}

func (r *repo) ListByRecipient(ctx context.Context, db *gorm.DB, recipientID snowflake.ID, after *domain.EntryCursor, limit int) ([]*domain.Entry, error) {
	stmt := db.WithContext(ctx).
		Table("commission_entries").
		Select(entryColumns).
		Where("recipient_id = ?", recipientID)
	if after != nil {
		stmt = stmt.Where("(created_at < ? OR (created_at = ? AND id < ?))", after.CreatedAt, after.CreatedAt, after.ID)
	}

	var entries []*domain.Entry
	err := stmt.
		Order("created_at desc, id desc").
		Limit(limit).
		Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) ListForPeriod(ctx context.Context, db *gorm.DB, recipientID snowflake.ID, from, to time.Time) ([]*domain.Entry, error) {
	var entries []*domain.Entry
	err := db.WithContext(ctx).Raw(
		`SELECT `+entryColumns+` FROM commission_entries
		 WHERE recipient_id = ? AND created_at >= ? AND created_at < ?
		 ORDER BY created_at ASC, id ASC`,
		recipientID,
		from,
		to,
	).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) SumDirectByCustomer(ctx context.Context, db *gorm.DB, recipientID snowflake.ID, from, to time.Time) ([]domain.CustomerTotal, error) {
	var totals []domain.CustomerTotal
	err := db.WithContext(ctx).Raw(
		`SELECT customer_id, COALESCE(SUM(amount), 0) AS total
		 FROM commission_entries
		 WHERE recipient_id = ? AND level = 1 AND created_at >= ? AND created_at < ?
		 GROUP BY customer_id
		 ORDER BY customer_id ASC`,
		recipientID,
		from,
		to,
	).Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return totals, nil
}

func (r *repo) SumIndirect(ctx context.Context, db *gorm.DB, recipientID snowflake.ID, from, to time.Time) (decimal.Decimal, error) {
	var row struct {
		Total decimal.Decimal `gorm:"column:total"`
	}
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0) AS total
		 FROM commission_entries
		 WHERE recipient_id = ? AND level IN (2, 3) AND created_at >= ? AND created_at < ?`,
		recipientID,
		from,
		to,
	).Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Total, nil
}
