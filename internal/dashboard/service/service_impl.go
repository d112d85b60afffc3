package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/referrals/internal/clock"
	"github.com/smallbiznis/referrals/internal/config"
	"github.com/smallbiznis/referrals/internal/dashboard/domain"
	dbpkg "github.com/smallbiznis/referrals/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock                  `optional:"true"`
	Settings *config.ReferralConfigHolder `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	settings *config.ReferralConfigHolder
}

func NewService(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	settings := p.Settings
	if settings == nil {
		settings = config.NewStaticReferralConfigHolder(config.DefaultReferralConfig())
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("dashboard.service"),
		clock:    clk,
		settings: settings,
	}
}

type accountTotalsRow struct {
	Accounts   int64 `gorm:"column:accounts"`
	Partners   int64 `gorm:"column:partners"`
	SignupsMTD int64 `gorm:"column:signups_mtd"`
}

type commissionTotalsRow struct {
	Entries int64           `gorm:"column:entries"`
	Amount  decimal.Decimal `gorm:"column:amount"`
}

func (s *Service) Overview(ctx context.Context) (domain.Overview, error) {
	now := s.clock.Now()
	start := clock.StartOfMonth(now, s.settings.Get().Location())
	end := start.AddDate(0, 1, 0)

	var accounts accountTotalsRow
	if err := s.db.WithContext(ctx).Raw(
		`SELECT COUNT(*) AS accounts,
		        COALESCE(SUM(CASE WHEN is_partner THEN 1 ELSE 0 END), 0) AS partners,
		        COALESCE(SUM(CASE WHEN created_at >= ? AND created_at < ? AND role = 'customer' THEN 1 ELSE 0 END), 0) AS signups_mtd
		 FROM accounts
		 WHERE role <> 'admin'`,
		start.UTC(), end.UTC(),
	).Scan(&accounts).Error; err != nil {
		s.log.Error("failed to count accounts", zap.Error(err))
		return domain.Overview{}, dbpkg.WrapPersistence("count accounts", err)
	}

	var subscriptions int64
	if err := s.db.WithContext(ctx).Raw(`SELECT COUNT(*) FROM subscriptions`).Scan(&subscriptions).Error; err != nil {
		return domain.Overview{}, dbpkg.WrapPersistence("count subscriptions", err)
	}

	var commissions commissionTotalsRow
	if err := s.db.WithContext(ctx).Raw(
		`SELECT COUNT(*) AS entries, COALESCE(SUM(amount), 0) AS amount
		 FROM commission_entries
		 WHERE created_at >= ? AND created_at < ?`,
		start.UTC(), end.UTC(),
	).Scan(&commissions).Error; err != nil {
		return domain.Overview{}, dbpkg.WrapPersistence("sum commissions", err)
	}

	return domain.Overview{
		Accounts:          accounts.Accounts,
		Partners:          accounts.Partners,
		Subscriptions:     subscriptions,
		SignupsMTD:        accounts.SignupsMTD,
		CommissionMTD:     commissions.Amount.Round(2),
		CommissionEntries: commissions.Entries,
		PeriodStart:       start,
		PeriodEnd:         end,
		GeneratedAt:       now.UTC(),
	}, nil
}
