package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	accountdomain "github.com/smallbiznis/referrals/internal/account/domain"
	"github.com/smallbiznis/referrals/internal/clock"
	commissiondomain "github.com/smallbiznis/referrals/internal/commission/domain"
	"github.com/smallbiznis/referrals/internal/config"
	invitationdomain "github.com/smallbiznis/referrals/internal/invitation/domain"
	obscontext "github.com/smallbiznis/referrals/internal/observability/context"
	obslogger "github.com/smallbiznis/referrals/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/referrals/internal/observability/metrics"
	referraldomain "github.com/smallbiznis/referrals/internal/referral/domain"
	subscriptiondomain "github.com/smallbiznis/referrals/internal/subscription/domain"
	"github.com/smallbiznis/referrals/internal/webhook/domain"
	dbpkg "github.com/smallbiznis/referrals/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultDeliveryLimit = 50
	maxDeliveryLimit     = 200
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Cfg           config.Config
	Verifier      *domain.Verifier
	Repo          domain.Repository
	Accounts      accountdomain.Service
	Subscriptions subscriptiondomain.Service
	Referrals     referraldomain.Service
	Commissions   commissiondomain.Service
	Invitations   invitationdomain.Service
	Lock          domain.SignupLock   `optional:"true"`
	Clock         clock.Clock         `optional:"true"`
	Metrics       *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	verifier      *domain.Verifier
	repo          domain.Repository
	accounts      accountdomain.Service
	subscriptions subscriptiondomain.Service
	referrals     referraldomain.Service
	commissions   commissiondomain.Service
	invitations   invitationdomain.Service
	lock          domain.SignupLock
	clock         clock.Clock
	metrics       *obsmetrics.Metrics
	callTimeout   time.Duration
	guard         guard
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("webhook.service"),
		verifier:      p.Verifier,
		repo:          p.Repo,
		accounts:      p.Accounts,
		subscriptions: p.Subscriptions,
		referrals:     p.Referrals,
		commissions:   p.Commissions,
		invitations:   p.Invitations,
		lock:          p.Lock,
		clock:         clk,
		metrics:       p.Metrics,
		callTimeout:   p.Cfg.Webhook.CallTimeout,
		guard:         guard{accounts: p.Accounts, timeout: p.Cfg.Webhook.CallTimeout},
	}
}

// Ingest verifies, normalizes and dispatches one delivery. Nothing is parsed
// or written before the signature checks out.
func (s *Service) Ingest(ctx context.Context, req domain.IngestRequest) (domain.Outcome, error) {
	log := obslogger.WithContext(ctx, s.log).With(zap.String("source", req.Source))

	if err := s.verifier.Verify(req.Payload, req.Signature); err != nil {
		s.metrics.RecordSignatureRejected(ctx, req.Source)
		log.Warn("webhook signature rejected")
		return domain.Outcome{}, err
	}

	event, err := domain.Normalize(req.Payload)
	if err != nil {
		log.Warn("webhook payload rejected", zap.Error(err))
		return domain.Outcome{}, err
	}
	if req.Expect != "" && event.Kind() != req.Expect {
		log.Warn("webhook event kind not accepted on this endpoint",
			zap.String("event", string(event.Kind())),
			obslogger.Email("email", event.Key()),
		)
		return domain.Outcome{}, domain.ErrUnexpectedEventType
	}

	delivery := s.beginDelivery(ctx, string(event.Kind()), event.Key())
	ctx = obscontext.WithDeliveryID(ctx, delivery.ID)

	outcome, err := s.dispatch(ctx, event)
	s.finishDelivery(ctx, delivery, string(outcome.Result), outcome.UserID, err)
	return outcome, err
}

func (s *Service) dispatch(ctx context.Context, event domain.Event) (domain.Outcome, error) {
	release, err := s.acquire(ctx, event.Key())
	if err != nil {
		return domain.Outcome{}, err
	}
	defer release()

	switch e := event.(type) {
	case domain.NewCustomerSignup:
		return s.HandleSignup(ctx, e)
	case domain.PartnerUpgrade:
		return s.HandleUpgrade(ctx, e)
	default:
		return domain.Outcome{}, domain.ErrUnexpectedEventType
	}
}

// acquire takes the per-email lock. A lock backend failure is logged and the
// delivery proceeds on the unique index alone.
func (s *Service) acquire(ctx context.Context, email string) (func(), error) {
	if s.lock == nil {
		return func() {}, nil
	}

	callCtx, cancel := dbpkg.WithCallTimeout(ctx, s.callTimeout)
	defer cancel()

	release, acquired, err := s.lock.Acquire(callCtx, email)
	if err != nil {
		obslogger.WithContext(ctx, s.log).Warn("signup lock unavailable",
			obslogger.Email("email", email),
			zap.Error(err),
		)
		return func() {}, nil
	}
	if !acquired {
		obslogger.WithContext(ctx, s.log).Info("delivery already in progress", obslogger.Email("email", email))
		return func() {}, domain.ErrDeliveryInProgress
	}
	return release, nil
}

// SyncIdentity upserts the account an identity-provider user.created event
// describes. Other event types are acknowledged and ignored.
func (s *Service) SyncIdentity(ctx context.Context, req domain.IngestRequest) (domain.IdentityOutcome, error) {
	log := obslogger.WithContext(ctx, s.log).With(zap.String("source", req.Source))

	if err := s.verifier.Verify(req.Payload, req.Signature); err != nil {
		s.metrics.RecordSignatureRejected(ctx, req.Source)
		log.Warn("webhook signature rejected")
		return domain.IdentityOutcome{}, err
	}

	event, err := domain.NormalizeIdentity(req.Payload)
	if err != nil {
		log.Warn("identity payload rejected", zap.Error(err))
		return domain.IdentityOutcome{}, err
	}
	if event.Type != domain.IdentityUserCreated {
		log.Debug("identity event ignored", zap.String("type", event.Type))
		return domain.IdentityOutcome{Result: domain.ResultIgnored, Received: event.Type}, nil
	}

	delivery := s.beginDelivery(ctx, event.Type, event.Email)
	ctx = obscontext.WithDeliveryID(ctx, delivery.ID)

	callCtx, cancel := dbpkg.WithCallTimeout(ctx, s.callTimeout)
	acct, err := s.accounts.SyncIdentity(callCtx, accountdomain.SyncIdentityRequest{
		IdentityID: event.IdentityID,
		Email:      event.Email,
		FullName:   event.FullName,
	})
	cancel()
	if err != nil {
		err = persistenceErr("sync identity", err)
		s.finishDelivery(ctx, delivery, "", 0, err)
		return domain.IdentityOutcome{}, err
	}

	s.finishDelivery(ctx, delivery, string(domain.ResultIdentitySynced), acct.ID, nil)
	log.Info("identity user synced", zap.String("user_id", acct.ID.String()))
	return domain.IdentityOutcome{
		Result:  domain.ResultIdentitySynced,
		Message: "user.created handled",
		UserID:  acct.ID,
	}, nil
}

func (s *Service) RecentDeliveries(ctx context.Context, limit int) ([]domain.Delivery, error) {
	switch {
	case limit <= 0:
		limit = defaultDeliveryLimit
	case limit > maxDeliveryLimit:
		limit = maxDeliveryLimit
	}

	items, err := s.repo.ListRecent(ctx, s.db, limit)
	if err != nil {
		return nil, dbpkg.WrapPersistence("list webhook deliveries", err)
	}
	deliveries := make([]domain.Delivery, 0, len(items))
	for _, item := range items {
		if item != nil {
			deliveries = append(deliveries, *item)
		}
	}
	return deliveries, nil
}

// beginDelivery journals the delivery. Journal writes never fail a delivery.
func (s *Service) beginDelivery(ctx context.Context, kind, email string) *domain.Delivery {
	delivery := &domain.Delivery{
		ID:         ulid.Make().String(),
		Kind:       kind,
		Email:      email,
		Outcome:    domain.OutcomeReceived,
		ReceivedAt: s.clock.Now().UTC(),
	}

	callCtx, cancel := dbpkg.WithCallTimeout(ctx, s.callTimeout)
	defer cancel()
	if err := s.repo.Insert(callCtx, s.db, delivery); err != nil {
		obslogger.WithContext(ctx, s.log).Warn("failed to journal webhook delivery",
			zap.String("delivery_id", delivery.ID),
			zap.Error(err),
		)
	}
	return delivery
}

func (s *Service) finishDelivery(ctx context.Context, delivery *domain.Delivery, result string, userID snowflake.ID, err error) {
	processedAt := s.clock.Now().UTC()
	delivery.ProcessedAt = &processedAt
	delivery.Outcome = result
	if err != nil {
		delivery.Outcome = errorLabel(err)
		msg := err.Error()
		delivery.Error = &msg
	}
	if userID != 0 {
		delivery.UserID = &userID
	} else {
		var partial *domain.PartialFailureError
		if errors.As(err, &partial) {
			delivery.UserID = &partial.UserID
		}
	}

	// The request context may already be cancelled; the journal still records the result.
	callCtx, cancel := dbpkg.WithCallTimeout(context.WithoutCancel(ctx), s.callTimeout)
	defer cancel()
	if err := s.repo.Complete(callCtx, s.db, delivery); err != nil {
		obslogger.WithContext(ctx, s.log).Warn("failed to complete webhook journal entry",
			zap.String("delivery_id", delivery.ID),
			zap.Error(err),
		)
	}
}

func outcomeLabel(outcome domain.Outcome, err error) string {
	if err != nil {
		return errorLabel(err)
	}
	return string(outcome.Result)
}

func errorLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrAccountCreatedSubscriptionMissing):
		return "partial_failure"
	case errors.Is(err, domain.ErrDeliveryInProgress):
		return "in_progress"
	case errors.Is(err, accountdomain.ErrNotFound):
		return "not_found"
	case errors.Is(err, accountdomain.ErrAdminAccount),
		errors.Is(err, domain.ErrInvalidField),
		errors.Is(err, domain.ErrMalformedPayload),
		errors.Is(err, domain.ErrUnexpectedEventType):
		return "rejected"
	case errors.Is(err, dbpkg.ErrPersistence):
		return "persistence_error"
	default:
		return "failed"
	}
}
