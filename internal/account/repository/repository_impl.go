package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/referrals/internal/account/domain"
	"gorm.io/gorm"
)

const accountColumns = `id, email, full_name, role, is_partner, active, referred_by,
	referrer_email, identity_id, metadata, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO accounts (id, email, full_name, role, is_partner, active, referred_by,
			referrer_email, identity_id, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.Email,
		account.FullName,
		account.Role,
		account.IsPartner,
		account.Active,
		account.ReferredBy,
		account.ReferrerEmail,
		account.IdentityID,
		account.Metadata,
		account.CreatedAt,
		account.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`,
		id,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT `+accountColumns+` FROM accounts WHERE lower(email) = lower(?)`,
		email,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

// PromoteToPartner flips both flags in one statement so is_partner and role
// never disagree. Admin rows are left untouched.
func (r *repo) PromoteToPartner(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE accounts
		 SET is_partner = TRUE, role = ?, updated_at = ?
		 WHERE id = ? AND role <> ?`,
		domain.RolePartner,
		now,
		id,
		domain.RoleAdmin,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) UpdateIdentity(ctx context.Context, db *gorm.DB, id snowflake.ID, identityID string, fullName *string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE accounts
		 SET identity_id = ?, full_name = COALESCE(?, full_name), updated_at = ?
		 WHERE id = ?`,
		identityID,
		fullName,
		now,
		id,
	).Error
}

func (r *repo) ListByReferrers(ctx context.Context, db *gorm.DB, referrerIDs []snowflake.ID) ([]*domain.Account, error) {
	if len(referrerIDs) == 0 {
		return nil, nil
	}
	var accounts []*domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT `+accountColumns+` FROM accounts
		 WHERE referred_by IN ?
		 ORDER BY created_at ASC, id ASC`,
		referrerIDs,
	).Scan(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *repo) ListByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*domain.Account, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var accounts []*domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT `+accountColumns+` FROM accounts WHERE id IN ? ORDER BY id ASC`,
		ids,
	).Scan(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}
