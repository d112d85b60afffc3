package service

import (
	"context"
	"errors"
	"fmt"

	accountdomain "github.com/smallbiznis/referrals/internal/account/domain"
	commissiondomain "github.com/smallbiznis/referrals/internal/commission/domain"
	obslogger "github.com/smallbiznis/referrals/internal/observability/logger"
	referraldomain "github.com/smallbiznis/referrals/internal/referral/domain"
	subscriptiondomain "github.com/smallbiznis/referrals/internal/subscription/domain"
	"github.com/smallbiznis/referrals/internal/webhook/domain"
	dbpkg "github.com/smallbiznis/referrals/pkg/db"
	"go.uber.org/zap"
)

const (
	stepCreateCustomer       = "create_customer"
	stepCreateSubscription   = "create_subscription"
	stepPropagateCommissions = "propagate_commissions"
)

func (s *Service) HandleSignup(ctx context.Context, event domain.NewCustomerSignup) (domain.Outcome, error) {
	outcome, err := s.handleSignup(ctx, event)
	s.metrics.RecordSignup(ctx, outcomeLabel(outcome, err))
	return outcome, err
}

func (s *Service) handleSignup(ctx context.Context, event domain.NewCustomerSignup) (domain.Outcome, error) {
	log := obslogger.WithContext(ctx, s.log).With(zap.String("event", string(domain.KindUserSignup)))

	existing, err := s.guard.CheckSignup(ctx, event.Email)
	if err != nil {
		return domain.Outcome{}, err
	}
	if existing != nil {
		log.Info("signup already processed", zap.String("user_id", existing.ID.String()))
		return domain.NewOutcome(domain.KindUserSignup, domain.ResultAlreadyExists, existing.ID), nil
	}

	referral, err := s.resolveReferrer(ctx, event.ReferrerEmail)
	if err != nil {
		return domain.Outcome{}, err
	}

	var (
		account      accountdomain.Account
		subscription subscriptiondomain.Subscription
	)
	saga := NewSaga(log).
		Primary(stepCreateCustomer, func(ctx context.Context) error {
			callCtx, cancel := dbpkg.WithCallTimeout(ctx, s.callTimeout)
			defer cancel()

			req := accountdomain.CreateCustomerRequest{
				Email:    event.Email,
				FullName: event.FullName,
				Metadata: event.Metadata,
			}
			if referral.Found() {
				req.ReferredBy = &referral.ReferrerID
			}
			if event.ReferrerEmail != "" {
				req.ReferrerEmail = &event.ReferrerEmail
			}

			created, err := s.accounts.CreateCustomer(callCtx, req)
			if err != nil {
				return err
			}
			account = created
			return nil
		}).
		Primary(stepCreateSubscription, func(ctx context.Context) error {
			callCtx, cancel := dbpkg.WithCallTimeout(ctx, s.callTimeout)
			defer cancel()

			created, err := s.subscriptions.Create(callCtx, subscriptiondomain.CreateSubscriptionRequest{
				AccountID:     account.ID,
				SetupAmount:   event.SetupAmount,
				MonthlyAmount: event.MonthlyAmount,
			})
			if err != nil {
				return err
			}
			subscription = created
			return nil
		}).
		BestEffort(stepPropagateCommissions, func(ctx context.Context) error {
			return s.propagate(ctx, referral, account, subscription)
		})

	if _, err := saga.Run(ctx); err != nil {
		return s.signupFailure(ctx, event, account, err)
	}

	log.Info("customer created",
		zap.String("user_id", account.ID.String()),
		zap.String("subscription_id", subscription.ID.String()),
		zap.Bool("referred", referral.Found()),
	)
	outcome := domain.NewOutcome(domain.KindUserSignup, domain.ResultCreated, account.ID)
	outcome.SubscriptionID = subscription.ID
	return outcome, nil
}

// resolveReferrer bounds the referrer lookup by the per-call timeout.
func (s *Service) resolveReferrer(ctx context.Context, email string) (referraldomain.Referral, error) {
	callCtx, cancel := dbpkg.WithCallTimeout(ctx, s.callTimeout)
	defer cancel()

	referral, err := s.referrals.Resolve(callCtx, email)
	if err != nil {
		return referraldomain.Referral{}, persistenceErr("resolve referrer", err)
	}
	if referral.Found() && !referral.Eligible {
		obslogger.WithContext(ctx, s.log).Info("referrer not eligible for commissions",
			zap.String("referrer_id", referral.ReferrerID.String()),
		)
	}
	return referral, nil
}

func (s *Service) propagate(ctx context.Context, referral referraldomain.Referral, account accountdomain.Account, subscription subscriptiondomain.Subscription) error {
	if !referral.Eligible {
		return nil
	}

	result, err := s.commissions.Propagate(ctx, commissiondomain.PropagateRequest{
		DirectReferrerID: referral.ReferrerID,
		CustomerID:       account.ID,
		SubscriptionID:   subscription.ID,
		SetupAmount:      subscription.SetupAmount,
		MonthlyAmount:    subscription.MonthlyAmount,
	})
	if err != nil {
		return err
	}

	obslogger.WithContext(ctx, s.log).Info("commissions propagated",
		zap.String("user_id", account.ID.String()),
		zap.Int("entries", len(result.Entries)),
		zap.Int("failed", result.Failed),
		zap.Int("stopped_at", result.StoppedAt),
		zap.String("stop_reason", result.StopReason),
	)
	if result.Failed > 0 {
		return fmt.Errorf("%d commission entries not written", result.Failed)
	}
	return nil
}

// signupFailure maps a failed primary step to the reported outcome.
func (s *Service) signupFailure(ctx context.Context, event domain.NewCustomerSignup, account accountdomain.Account, err error) (domain.Outcome, error) {
	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		return domain.Outcome{}, err
	}

	switch stepErr.Step {
	case stepCreateCustomer:
		if errors.Is(stepErr.Err, accountdomain.ErrAccountExists) {
			// Lost the race to a concurrent delivery; the unique index caught it.
			existing, lookupErr := s.guard.CheckSignup(ctx, event.Email)
			if lookupErr != nil {
				return domain.Outcome{}, lookupErr
			}
			if existing != nil {
				return domain.NewOutcome(domain.KindUserSignup, domain.ResultAlreadyExists, existing.ID), nil
			}
		}
		return domain.Outcome{}, persistenceErr("create customer", stepErr.Err)
	case stepCreateSubscription:
		obslogger.WithContext(ctx, s.log).Error("subscription missing for created account",
			zap.String("user_id", account.ID.String()),
			zap.Error(stepErr.Err),
		)
		return domain.Outcome{}, &domain.PartialFailureError{
			UserID:    account.ID,
			Completed: stepErr.Completed,
			Err:       persistenceErr("create subscription", stepErr.Err),
		}
	default:
		return domain.Outcome{}, stepErr.Err
	}
}
