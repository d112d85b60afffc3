package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/referrals/internal/account/domain"
	"github.com/smallbiznis/referrals/internal/clock"
	"github.com/smallbiznis/referrals/internal/commission/domain"
	"github.com/smallbiznis/referrals/internal/config"
	obsmetrics "github.com/smallbiznis/referrals/internal/observability/metrics"
	dbpkg "github.com/smallbiznis/referrals/pkg/db"
	"github.com/smallbiznis/referrals/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Repo           domain.Repository
	Accounts       accountdomain.Service
	Cfg            config.Config
	Clock          clock.Clock                  `optional:"true"`
	ReferralConfig *config.ReferralConfigHolder `optional:"true"`
	Metrics        *obsmetrics.Metrics          `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	accounts    accountdomain.Service
	callTimeout time.Duration
	clock       clock.Clock
	settings    *config.ReferralConfigHolder
	metrics     *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("commission.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		accounts:    p.Accounts,
		callTimeout: p.Cfg.Webhook.CallTimeout,
		clock:       clk,
		settings:    p.ReferralConfig,
		metrics:     p.Metrics,
	}
}

func (s *Service) List(ctx context.Context, req domain.ListEntriesRequest) (domain.ListEntriesResponse, error) {
	if req.PartnerID == 0 {
		return domain.ListEntriesResponse{}, domain.ErrInvalidPartner
	}
	if _, err := s.accounts.GetByID(ctx, req.PartnerID); err != nil {
		return domain.ListEntriesResponse{}, err
	}

	var after *domain.EntryCursor
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return domain.ListEntriesResponse{}, err
		}
		createdAt, err := cursor.Time()
		if err != nil {
			return domain.ListEntriesResponse{}, err
		}
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return domain.ListEntriesResponse{}, pagination.ErrInvalidPageToken
		}
		after = &domain.EntryCursor{CreatedAt: createdAt, ID: id}
	}

	limit := req.Size()
	items, err := s.repo.ListByRecipient(ctx, s.db, req.PartnerID, after, limit+1)
	if err != nil {
		return domain.ListEntriesResponse{}, dbpkg.WrapPersistence("list commission entries", err)
	}

	items, pageInfo, err := pagination.BuildCursorPageInfo(items, limit, func(entry *domain.Entry) pagination.Cursor {
		return pagination.Cursor{
			ID:        entry.ID.String(),
			CreatedAt: entry.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
	})
	if err != nil {
		return domain.ListEntriesResponse{}, err
	}

	return domain.ListEntriesResponse{
		PageInfo: pageInfo,
		Entries:  derefEntries(items),
	}, nil
}

// Summary reports month-to-date commissions: direct ones grouped per customer
// and indirect ones (levels 2 and 3) as a single total.
func (s *Service) Summary(ctx context.Context, partnerID snowflake.ID) (domain.Summary, error) {
	if partnerID == 0 {
		return domain.Summary{}, domain.ErrInvalidPartner
	}
	if _, err := s.accounts.GetByID(ctx, partnerID); err != nil {
		return domain.Summary{}, err
	}
	return s.summary(ctx, partnerID)
}

func (s *Service) Statement(ctx context.Context, partnerID snowflake.ID) (domain.Statement, error) {
	if partnerID == 0 {
		return domain.Statement{}, domain.ErrInvalidPartner
	}
	partner, err := s.accounts.GetByID(ctx, partnerID)
	if err != nil {
		return domain.Statement{}, err
	}

	summary, err := s.summary(ctx, partnerID)
	if err != nil {
		return domain.Statement{}, err
	}

	entries, err := s.repo.ListForPeriod(ctx, s.db, partnerID, summary.PeriodStart.UTC(), summary.PeriodEnd.UTC())
	if err != nil {
		return domain.Statement{}, dbpkg.WrapPersistence("list statement entries", err)
	}

	return domain.Statement{
		Partner: partner,
		Summary: summary,
		Entries: derefEntries(entries),
	}, nil
}

func (s *Service) summary(ctx context.Context, partnerID snowflake.ID) (domain.Summary, error) {
	loc := s.settings.Get().Location()
	now := s.clock.Now()
	start := clock.StartOfMonth(now, loc)
	end := start.AddDate(0, 1, 0)

	totals, err := s.repo.SumDirectByCustomer(ctx, s.db, partnerID, start.UTC(), end.UTC())
	if err != nil {
		return domain.Summary{}, dbpkg.WrapPersistence("sum direct commissions", err)
	}
	indirect, err := s.repo.SumIndirect(ctx, s.db, partnerID, start.UTC(), end.UTC())
	if err != nil {
		return domain.Summary{}, dbpkg.WrapPersistence("sum indirect commissions", err)
	}

	customerIDs := make([]snowflake.ID, 0, len(totals))
	for _, total := range totals {
		customerIDs = append(customerIDs, total.CustomerID)
	}
	customers, err := s.accounts.ListByIDs(ctx, customerIDs)
	if err != nil {
		return domain.Summary{}, err
	}
	byID := make(map[snowflake.ID]accountdomain.Account, len(customers))
	for _, customer := range customers {
		byID[customer.ID] = customer
	}

	summary := domain.Summary{
		PartnerID:     partnerID,
		PeriodStart:   start,
		PeriodEnd:     end,
		Direct:        make([]domain.CustomerCommission, 0, len(totals)),
		DirectTotal:   decimal.Zero,
		IndirectTotal: indirect.Round(2),
	}
	for _, total := range totals {
		amount := total.Total.Round(2)
		item := domain.CustomerCommission{
			CustomerID: total.CustomerID,
			Total:      amount,
		}
		if customer, ok := byID[total.CustomerID]; ok {
			item.Email = customer.Email
			item.FullName = customer.DisplayName()
		}
		summary.Direct = append(summary.Direct, item)
		summary.DirectTotal = summary.DirectTotal.Add(amount)
	}
	summary.Total = summary.DirectTotal.Add(summary.IndirectTotal)

	return summary, nil
}

func derefEntries(items []*domain.Entry) []domain.Entry {
	entries := make([]domain.Entry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		entries = append(entries, *item)
	}
	return entries
}
