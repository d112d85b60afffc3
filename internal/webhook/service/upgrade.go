package service

import (
	"context"
	"errors"

	accountdomain "github.com/smallbiznis/referrals/internal/account/domain"
	obslogger "github.com/smallbiznis/referrals/internal/observability/logger"
	"github.com/smallbiznis/referrals/internal/webhook/domain"
	dbpkg "github.com/smallbiznis/referrals/pkg/db"
	"go.uber.org/zap"
)

const (
	stepPromotePartner = "promote_partner"
	stepNotifyPartner  = "notify_partner"
)

// HandleUpgrade promotes the account and sends the invitation. Upgrades
// never compute commissions.
func (s *Service) HandleUpgrade(ctx context.Context, event domain.PartnerUpgrade) (domain.Outcome, error) {
	outcome, err := s.handleUpgrade(ctx, event)
	s.metrics.RecordUpgrade(ctx, outcomeLabel(outcome, err))
	return outcome, err
}

func (s *Service) handleUpgrade(ctx context.Context, event domain.PartnerUpgrade) (domain.Outcome, error) {
	log := obslogger.WithContext(ctx, s.log).With(zap.String("event", string(domain.KindPartnerSignup)))

	existing, alreadyPartner, err := s.guard.CheckUpgrade(ctx, event.Email)
	if err != nil {
		return domain.Outcome{}, err
	}
	if alreadyPartner {
		log.Info("account already partner", zap.String("user_id", existing.ID.String()))
		return domain.NewOutcome(domain.KindPartnerSignup, domain.ResultAlreadyPartner, existing.ID), nil
	}

	promoted := *existing
	saga := NewSaga(log).
		Primary(stepPromotePartner, func(ctx context.Context) error {
			callCtx, cancel := dbpkg.WithCallTimeout(ctx, s.callTimeout)
			defer cancel()

			updated, err := s.accounts.PromoteToPartner(callCtx, existing.ID)
			if err != nil {
				return err
			}
			promoted = updated
			return nil
		}).
		BestEffort(stepNotifyPartner, func(ctx context.Context) error {
			return s.invitations.NotifyPartner(ctx, promoted)
		})

	report, err := saga.Run(ctx)
	if err != nil {
		var stepErr *StepError
		if errors.As(err, &stepErr) {
			err = stepErr.Err
		}
		if errors.Is(err, accountdomain.ErrAdminAccount) || errors.Is(err, accountdomain.ErrNotFound) {
			return domain.Outcome{}, err
		}
		return domain.Outcome{}, persistenceErr("promote partner", err)
	}

	log.Info("account upgraded to partner",
		zap.String("user_id", promoted.ID.String()),
		zap.Bool("invitation_sent", len(report.Failures) == 0),
	)
	return domain.NewOutcome(domain.KindPartnerSignup, domain.ResultUpgraded, promoted.ID), nil
}
