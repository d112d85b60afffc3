package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	FindLatestByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (*Subscription, error)
}
