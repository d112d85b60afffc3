package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type AttemptStatus string

const (
	AttemptSent   AttemptStatus = "sent"
	AttemptFailed AttemptStatus = "failed"
)

// PartnerInvitation records one attempt to send the partner onboarding invite.
type PartnerInvitation struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	AccountID snowflake.ID  `gorm:"not null;index" json:"account_id"`
	Email     string        `gorm:"not null" json:"email"`
	Provider  string        `gorm:"not null" json:"provider"`
	Status    AttemptStatus `gorm:"not null" json:"status"`
	Error     *string       `json:"error,omitempty"`
	CreatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// ReferralInvite is a prospect a partner intends to refer.
type ReferralInvite struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	PartnerID snowflake.ID `gorm:"not null;index" json:"partner_id"`
	Email     string       `gorm:"not null" json:"email"`
	FullName  *string      `json:"full_name,omitempty"`
	Phone     *string      `json:"phone,omitempty"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}
