package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, account *Account) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Account, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*Account, error)
	PromoteToPartner(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (int64, error)
	UpdateIdentity(ctx context.Context, db *gorm.DB, id snowflake.ID, identityID string, fullName *string, now time.Time) error
	ListByReferrers(ctx context.Context, db *gorm.DB, referrerIDs []snowflake.ID) ([]*Account, error)
	ListByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*Account, error)
}
