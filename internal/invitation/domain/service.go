package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/referrals/internal/account/domain"
)

type InviteReferralRequest struct {
	PartnerID snowflake.ID
	FullName  string `validate:"omitempty,min=2,max=120,fullname"`
	Email     string `validate:"required,email,max=254"`
	Phone     string `validate:"omitempty,phone"`
}

type Service interface {
	// NotifyPartner sends the invitation and records the attempt. A failed
	// send is returned wrapped in ErrNotificationFailed; nothing is rolled back.
	NotifyPartner(ctx context.Context, partner accountdomain.Account) error
	ListAttempts(ctx context.Context, accountID snowflake.ID) ([]PartnerInvitation, error)
	InviteReferral(ctx context.Context, req InviteReferralRequest) (ReferralInvite, error)
	ListReferralInvites(ctx context.Context, partnerID snowflake.ID) ([]ReferralInvite, error)
}

var (
	ErrNotificationFailed = errors.New("notification_failed")
	ErrAlreadyCustomer    = errors.New("already_customer")
	ErrAlreadyInvited     = errors.New("already_invited")
	ErrNotPartner         = errors.New("not_partner")
	ErrInvalidFullName    = errors.New("invalid_full_name")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrInvalidPhone       = errors.New("invalid_phone")
)
