package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/referrals/internal/invitation/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertAttempt(ctx context.Context, db *gorm.DB, attempt *domain.PartnerInvitation) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO partner_invitations (id, account_id, email, provider, status, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		attempt.ID,
		attempt.AccountID,
		attempt.Email,
		attempt.Provider,
		attempt.Status,
		attempt.Error,
		attempt.CreatedAt,
	).Error
}

func (r *repo) ListAttempts(ctx context.Context, db *gorm.DB, accountID snowflake.ID) ([]*domain.PartnerInvitation, error) {
	var attempts []*domain.PartnerInvitation
	err := db.WithContext(ctx).Raw(
		`SELECT id, account_id, email, provider, status, error, created_at
		 FROM partner_invitations
		 WHERE account_id = ?
		 ORDER BY created_at DESC, id DESC`,
		accountID,
	).Scan(&attempts).Error
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

func (r *repo) InsertReferralInvite(ctx context.Context, db *gorm.DB, invite *domain.ReferralInvite) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO referral_invites (id, partner_id, email, full_name, phone, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		invite.ID,
		invite.PartnerID,
		invite.Email,
		invite.FullName,
		invite.Phone,
		invite.CreatedAt,
	).Error
}

func (r *repo) ListReferralInvites(ctx context.Context, db *gorm.DB, partnerID snowflake.ID) ([]*domain.ReferralInvite, error) {
	var invites []*domain.ReferralInvite
	err := db.WithContext(ctx).Raw(
		`SELECT id, partner_id, email, full_name, phone, created_at
		 FROM referral_invites
		 WHERE partner_id = ?
		 ORDER BY created_at DESC, id DESC`,
		partnerID,
	).Scan(&invites).Error
	if err != nil {
		return nil, err
	}
	return invites, nil
}
