package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/referrals/internal/webhook/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, delivery *domain.Delivery) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO webhook_events (id, kind, email, outcome, received_at)
		 VALUES (?, ?, ?, ?, ?)`,
		delivery.ID,
		delivery.Kind,
		delivery.Email,
		delivery.Outcome,
		delivery.ReceivedAt,
	).Error
}

func (r *repo) Complete(ctx context.Context, db *gorm.DB, delivery *domain.Delivery) error {
	return db.WithContext(ctx).Exec(
		`UPDATE webhook_events
		 SET kind = ?, email = ?, outcome = ?, user_id = ?, error = ?, processed_at = ?
		 WHERE id = ?`,
		delivery.Kind,
		delivery.Email,
		delivery.Outcome,
		delivery.UserID,
		delivery.Error,
		delivery.ProcessedAt,
		delivery.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id string) (*domain.Delivery, error) {
	var delivery domain.Delivery
	err := db.WithContext(ctx).Raw(
		`SELECT id, kind, COALESCE(email, '') AS email, outcome, user_id, error, received_at, processed_at
		 FROM webhook_events
		 WHERE id = ?`,
		id,
	).Scan(&delivery).Error
	if err != nil {
		return nil, err
	}
	if delivery.ID == "" {
		return nil, nil
	}
	return &delivery, nil
}

func (r *repo) ListRecent(ctx context.Context, db *gorm.DB, limit int) ([]*domain.Delivery, error) {
	var deliveries []*domain.Delivery
	err := db.WithContext(ctx).Raw(
		`SELECT id, kind, COALESCE(email, '') AS email, outcome, user_id, error, received_at, processed_at
		 FROM webhook_events
		 ORDER BY received_at DESC, id DESC
		 LIMIT ?`,
		limit,
	).Scan(&deliveries).Error
	if err != nil {
		return nil, err
	}
	return deliveries, nil
}

func (r *repo) AbandonStale(ctx context.Context, db *gorm.DB, cutoff, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE webhook_events
		 SET outcome = ?, error = ?, processed_at = ?
		 WHERE outcome = ? AND received_at < ?`,
		domain.OutcomeAbandoned,
		"delivery never completed",
		now,
		domain.OutcomeReceived,
		cutoff,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) PruneBefore(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`DELETE FROM webhook_events
		 WHERE id IN (
		   SELECT id FROM webhook_events
		   WHERE received_at < ?
		   ORDER BY received_at ASC
		   LIMIT ?
		 )`,
		cutoff,
		limit,
	)
	return result.RowsAffected, result.Error
}
