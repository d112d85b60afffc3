package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/referrals/internal/account/domain"
	"github.com/smallbiznis/referrals/internal/clock"
	dbpkg "github.com/smallbiznis/referrals/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
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
		log:   p.Log.Named("account.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: clk,
	}
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Account, error) {
	if id == 0 {
		return domain.Account{}, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Account{}, dbpkg.WrapPersistence("find account", err)
	}
	if item == nil {
		return domain.Account{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.Account{}, domain.ErrInvalidEmail
	}

	item, err := s.repo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return domain.Account{}, dbpkg.WrapPersistence("find account by email", err)
	}
	if item == nil {
		return domain.Account{}, domain.ErrNotFound
	}
	return *item, nil
}

// CreateCustomer inserts a plain customer row. A unique violation on the email
// index is reported as ErrAccountExists so callers can treat the event as
// already applied.
func (s *Service) CreateCustomer(ctx context.Context, req domain.CreateCustomerRequest) (domain.Account, error) {
	email := domain.NormalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return domain.Account{}, domain.ErrInvalidEmail
	}
	name := strings.TrimSpace(req.FullName)
	if name == "" {
		return domain.Account{}, domain.ErrInvalidName
	}

	metadata := datatypes.JSONMap{}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	now := s.clock.Now()
	account := domain.Account{
		ID:            s.genID.Generate(),
		Email:         email,
		FullName:      &name,
		Role:          domain.RoleCustomer,
		IsPartner:     false,
		Active:        true,
		ReferredBy:    req.ReferredBy,
		ReferrerEmail: req.ReferrerEmail,
		Metadata:      metadata,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Insert(ctx, s.db, &account); err != nil {
		if dbpkg.IsDuplicateKeyErr(err) {
			return domain.Account{}, domain.ErrAccountExists
		}
		s.log.Error("failed to insert customer", zap.Error(err))
		return domain.Account{}, dbpkg.WrapPersistence("insert account", err)
	}

	return account, nil
}

// PromoteToPartner is idempotent: promoting a partner again rewrites the same values.
func (s *Service) PromoteToPartner(ctx context.Context, id snowflake.ID) (domain.Account, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return domain.Account{}, err
	}
	if current.Role == domain.RoleAdmin {
		return domain.Account{}, domain.ErrAdminAccount
	}

	now := s.clock.Now()
	affected, err := s.repo.PromoteToPartner(ctx, s.db, id, now)
	if err != nil {
		return domain.Account{}, dbpkg.WrapPersistence("promote account", err)
	}
	if affected == 0 {
		// Row vanished or became admin between the read and the update.
		return domain.Account{}, domain.ErrNotFound
	}

	current.IsPartner = true
	current.Role = domain.RolePartner
	current.UpdatedAt = now
	return current, nil
}

// SyncIdentity links an identity-provider user to the account with the same
// email, creating a customer when none exists. Role and partner flags are
// never changed here.
func (s *Service) SyncIdentity(ctx context.Context, req domain.SyncIdentityRequest) (domain.Account, error) {
	identityID := strings.TrimSpace(req.IdentityID)
	if identityID == "" {
		return domain.Account{}, domain.ErrInvalidRequest
	}
	email := domain.NormalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return domain.Account{}, domain.ErrInvalidEmail
	}
	fullName := trimmedOrNil(req.FullName)

	existing, err := s.repo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return domain.Account{}, dbpkg.WrapPersistence("find account by email", err)
	}

	if existing == nil {
		now := s.clock.Now()
		account := domain.Account{
			ID:         s.genID.Generate(),
			Email:      email,
			FullName:   fullName,
			Role:       domain.RoleCustomer,
			Active:     true,
			IdentityID: &identityID,
			Metadata:   datatypes.JSONMap{},
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		err := s.repo.Insert(ctx, s.db, &account)
		if err == nil {
			return account, nil
		}
		if !dbpkg.IsDuplicateKeyErr(err) {
			return domain.Account{}, dbpkg.WrapPersistence("insert account", err)
		}
		// Lost the insert race; fall through to the update path.
		existing, err = s.repo.FindByEmail(ctx, s.db, email)
		if err != nil {
			return domain.Account{}, dbpkg.WrapPersistence("find account by email", err)
		}
		if existing == nil {
			return domain.Account{}, domain.ErrNotFound
		}
	}

	now := s.clock.Now()
	if err := s.repo.UpdateIdentity(ctx, s.db, existing.ID, identityID, fullName, now); err != nil {
		return domain.Account{}, dbpkg.WrapPersistence("update identity", err)
	}
	existing.IdentityID = &identityID
	if fullName != nil {
		existing.FullName = fullName
	}
	existing.UpdatedAt = now
	return *existing, nil
}

func (s *Service) ListReferredBy(ctx context.Context, referrerIDs []snowflake.ID) ([]domain.Account, error) {
	items, err := s.repo.ListByReferrers(ctx, s.db, referrerIDs)
	if err != nil {
		return nil, dbpkg.WrapPersistence("list referred accounts", err)
	}
	return deref(items), nil
}

func (s *Service) ListByIDs(ctx context.Context, ids []snowflake.ID) ([]domain.Account, error) {
	items, err := s.repo.ListByIDs(ctx, s.db, ids)
	if err != nil {
		return nil, dbpkg.WrapPersistence("list accounts", err)
	}
	return deref(items), nil
}

func deref(items []*domain.Account) []domain.Account {
	accounts := make([]domain.Account, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		accounts = append(accounts, *item)
	}
	return accounts
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

