package email

import (
	"context"
	"maps"

	"github.com/smallbiznis/referrals/internal/config"
)

// InvitationNotifier delivers partner invitations as templated email.
type InvitationNotifier struct {
	provider    Provider
	redirectURL string
	settings    *config.ReferralConfigHolder
}

func NewInvitationNotifier(provider Provider, redirectURL string, settings *config.ReferralConfigHolder) *InvitationNotifier {
	return &InvitationNotifier{provider: provider, redirectURL: redirectURL, settings: settings}
}

func (n *InvitationNotifier) Name() string { return "email" }

func (n *InvitationNotifier) SendPartnerInvitation(ctx context.Context, email string, metadata map[string]any) error {
	data := make(map[string]any, len(metadata)+3)
	maps.Copy(data, metadata)
	data["email"] = email

	redirect := n.redirectURL
	if n.settings != nil {
		invitation := n.settings.Get().Invitation
		if invitation.RedirectURL != "" {
			redirect = invitation.RedirectURL
		}
		if invitation.Subject != "" {
			data["subject"] = invitation.Subject
		}
	}
	if redirect != "" {
		data["redirect_url"] = redirect
	}
	return n.provider.SendTemplate(ctx, []string{email}, "partner_invitation", data)
}
