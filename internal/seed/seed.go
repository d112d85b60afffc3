package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/referrals/internal/account/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultAdminName = "Referrals Admin"

var ErrInvalidAdminEmail = errors.New("invalid_admin_email")

// EnsureAdmin seeds the operator account used by the admin surface. An
// existing account with the same email is left untouched.
func EnsureAdmin(db *gorm.DB, email, name string) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	email = accountdomain.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return ErrInvalidAdminEmail
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultAdminName
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing accountdomain.Account
		err := tx.WithContext(ctx).
			Where("lower(email) = ?", email).
			First(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := time.Now().UTC()
		admin := accountdomain.Account{
			ID:        node.Generate(),
			Email:     email,
			FullName:  &name,
			Role:      accountdomain.RoleAdmin,
			Active:    true,
			Metadata:  datatypes.JSONMap{},
			CreatedAt: now,
			UpdatedAt: now,
		}
		return tx.WithContext(ctx).Create(&admin).Error
	})
}
