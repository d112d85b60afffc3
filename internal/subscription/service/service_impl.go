package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/referrals/internal/clock"
	"github.com/smallbiznis/referrals/internal/subscription/domain"
	dbpkg "github.com/smallbiznis/referrals/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Clock clock.Clock `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	clock clock.Clock
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("subscription.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: clk,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateSubscriptionRequest) (domain.Subscription, error) {
	if req.AccountID == 0 {
		return domain.Subscription{}, domain.ErrInvalidAccount
	}
	if req.SetupAmount.IsNegative() || req.MonthlyAmount.IsNegative() {
		return domain.Subscription{}, domain.ErrInvalidAmount
	}

	now := s.clock.Now()
	subscription := domain.Subscription{
		ID:            s.genID.Generate(),
		AccountID:     req.AccountID,
		SetupAmount:   req.SetupAmount.Round(2),
		MonthlyAmount: req.MonthlyAmount.Round(2),
		PaidAt:        now,
		CreatedAt:     now,
	}

	if err := s.repo.Insert(ctx, s.db, &subscription); err != nil {
		s.log.Error("failed to insert subscription",
			zap.String("account_id", req.AccountID.String()),
			zap.Error(err),
		)
		return domain.Subscription{}, dbpkg.WrapPersistence("insert subscription", err)
	}

	return subscription, nil
}

func (s *Service) Latest(ctx context.Context, accountID snowflake.ID) (domain.Subscription, error) {
	if accountID == 0 {
		return domain.Subscription{}, domain.ErrInvalidAccount
	}

	item, err := s.repo.FindLatestByAccount(ctx, s.db, accountID)
	if err != nil {
		return domain.Subscription{}, dbpkg.WrapPersistence("find subscription", err)
	}
	if item == nil {
		return domain.Subscription{}, domain.ErrNotFound
	}
	return *item, nil
}
