package providers

import (
	"github.com/smallbiznis/referrals/internal/config"
	invitationdomain "github.com/smallbiznis/referrals/internal/invitation/domain"
	"github.com/smallbiznis/referrals/internal/providers/email"
	"github.com/smallbiznis/referrals/internal/providers/identity"
	"github.com/smallbiznis/referrals/internal/providers/pdf"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
	fx.Provide(NewNotifier),
)

type NotifierParams struct {
	fx.In

	Cfg      config.Config
	Log      *zap.Logger
	Email    email.Provider
	Settings *config.ReferralConfigHolder `optional:"true"`
}

// NewNotifier prefers the identity provider, then SMTP, then a no-op.
func NewNotifier(p NotifierParams) invitationdomain.Notifier {
	log := p.Log.Named("providers")

	if p.Cfg.Identity.APIURL != "" && p.Cfg.Identity.APIKey != "" {
		log.Info("partner invitations via identity provider")
		return identity.NewClient(identity.Config{
			APIURL:      p.Cfg.Identity.APIURL,
			APIKey:      p.Cfg.Identity.APIKey,
			RedirectURL: p.Cfg.Identity.RedirectURL,
			Timeout:     p.Cfg.Webhook.CallTimeout,
		}, nil)
	}

	if _, noop := p.Email.(*email.NoOpProvider); !noop {
		log.Info("partner invitations via smtp")
		return email.NewInvitationNotifier(p.Email, p.Cfg.Identity.RedirectURL, p.Settings)
	}

	log.Warn("no invitation provider configured; partner invitations are not delivered")
	return invitationdomain.NoOpNotifier{}
}
