package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Delivery is one journaled webhook delivery. The journal is an audit trail;
// idempotency is keyed on the account email, never on the delivery id.
type Delivery struct {
	ID          string        `gorm:"primaryKey" json:"id"`
	Kind        string        `gorm:"not null" json:"kind"`
	Email       string        `json:"email"`
	Outcome     string        `gorm:"not null" json:"outcome"`
	UserID      *snowflake.ID `json:"user_id,omitempty"`
	Error       *string       `json:"error,omitempty"`
	ReceivedAt  time.Time     `gorm:"not null" json:"received_at"`
	ProcessedAt *time.Time    `json:"processed_at,omitempty"`
}

const (
	OutcomeReceived  = "received"
	OutcomeAbandoned = "abandoned"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, delivery *Delivery) error
	Complete(ctx context.Context, db *gorm.DB, delivery *Delivery) error
	FindByID(ctx context.Context, db *gorm.DB, id string) (*Delivery, error)
	ListRecent(ctx context.Context, db *gorm.DB, limit int) ([]*Delivery, error)
	// AbandonStale closes deliveries still marked received before cutoff.
	AbandonStale(ctx context.Context, db *gorm.DB, cutoff, now time.Time) (int64, error)
	// PruneBefore deletes up to limit deliveries received before cutoff.
	PruneBefore(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) (int64, error)
}
