package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RolePartner  Role = "partner"
	RoleAdmin    Role = "admin"
)

type Account struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	Email         string            `gorm:"not null" json:"email"`
	FullName      *string           `gorm:"column:full_name" json:"full_name,omitempty"`
	Role          Role              `gorm:"not null" json:"role"`
	IsPartner     bool              `gorm:"not null" json:"is_partner"`
	Active        bool              `gorm:"not null" json:"active"`
	ReferredBy    *snowflake.ID     `gorm:"column:referred_by" json:"referred_by,omitempty"`
	ReferrerEmail *string           `gorm:"column:referrer_email" json:"referrer_email,omitempty"`
	IdentityID    *string           `gorm:"column:identity_id" json:"identity_id,omitempty"`
	Metadata      datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// CommissionEligible reports whether the account may earn commissions right now.
// Admin accounts never sit in the commission graph.
func (a Account) CommissionEligible() bool {
	return a.IsPartner && a.Active && a.Role != RoleAdmin
}

func (a Account) DisplayName() string {
	if a.FullName == nil {
		return ""
	}
	return *a.FullName
}

// NormalizeEmail is the canonical form used for storage and every lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
