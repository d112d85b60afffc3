package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertAttempt(ctx context.Context, db *gorm.DB, attempt *PartnerInvitation) error
	ListAttempts(ctx context.Context, db *gorm.DB, accountID snowflake.ID) ([]*PartnerInvitation, error)
	InsertReferralInvite(ctx context.Context, db *gorm.DB, invite *ReferralInvite) error
	ListReferralInvites(ctx context.Context, db *gorm.DB, partnerID snowflake.ID) ([]*ReferralInvite, error)
}
