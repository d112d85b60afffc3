package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	accountdomain "github.com/smallbiznis/referrals/internal/account/domain"
	"github.com/smallbiznis/referrals/internal/clock"
	"github.com/smallbiznis/referrals/internal/config"
	"github.com/smallbiznis/referrals/internal/invitation/domain"
	obslogger "github.com/smallbiznis/referrals/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/referrals/internal/observability/metrics"
	dbpkg "github.com/smallbiznis/referrals/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	fullNamePattern = regexp.MustCompile(`^[\p{L} '\-]+$`)
	phonePattern    = regexp.MustCompile(`^\+?[0-9 ()\-]{7,}$`)
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Accounts accountdomain.Service
	Notifier domain.Notifier `optional:"true"`
	Cfg      config.Config
	Clock    clock.Clock         `optional:"true"`
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	accounts    accountdomain.Service
	notifier    domain.Notifier
	callTimeout time.Duration
	clock       clock.Clock
	metrics     *obsmetrics.Metrics
	validate    *validator.Validate
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	notifier := p.Notifier
	if notifier == nil {
		notifier = domain.NoOpNotifier{}
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("invitation.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		accounts:    p.Accounts,
		notifier:    notifier,
		callTimeout: p.Cfg.Webhook.CallTimeout,
		clock:       clk,
		metrics:     p.Metrics,
		validate:    newValidator(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("fullname", func(fl validator.FieldLevel) bool {
		return fullNamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return v
}

func (s *Service) NotifyPartner(ctx context.Context, partner accountdomain.Account) error {
	provider := s.notifier.Name()
	metadata := map[string]any{
		"role":       string(accountdomain.RolePartner),
		"account_id": partner.ID.String(),
	}

	callCtx, cancel := dbpkg.WithCallTimeout(ctx, s.callTimeout)
	sendErr := s.notifier.SendPartnerInvitation(callCtx, partner.Email, metadata)
	cancel()

	attempt := domain.PartnerInvitation{
		ID:        s.genID.Generate(),
		AccountID: partner.ID,
		Email:     partner.Email,
		Provider:  provider,
		Status:    domain.AttemptSent,
		CreatedAt: s.clock.Now(),
	}
	if sendErr != nil {
		msg := sendErr.Error()
		attempt.Status = domain.AttemptFailed
		attempt.Error = &msg
	}

	log := obslogger.WithContext(ctx, s.log).With(
		zap.String("account_id", partner.ID.String()),
		zap.String("provider", provider),
	)
	if err := s.repo.InsertAttempt(ctx, s.db, &attempt); err != nil {
		log.Warn("failed to record invitation attempt", zap.Error(err))
	}
	s.metrics.RecordInvitation(ctx, provider, string(attempt.Status))

	if sendErr != nil {
		log.Warn("partner invitation failed", zap.Error(sendErr))
		return fmt.Errorf("%w: %w", domain.ErrNotificationFailed, sendErr)
	}
	log.Info("partner invitation sent")
	return nil
}

func (s *Service) ListAttempts(ctx context.Context, accountID snowflake.ID) ([]domain.PartnerInvitation, error) {
	items, err := s.repo.ListAttempts(ctx, s.db, accountID)
	if err != nil {
		return nil, dbpkg.WrapPersistence("list invitation attempts", err)
	}
	attempts := make([]domain.PartnerInvitation, 0, len(items))
	for _, item := range items {
		if item != nil {
			attempts = append(attempts, *item)
		}
	}
	return attempts, nil
}

func (s *Service) InviteReferral(ctx context.Context, req domain.InviteReferralRequest) (domain.ReferralInvite, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = accountdomain.NormalizeEmail(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	if err := s.validateInvite(req); err != nil {
		return domain.ReferralInvite{}, err
	}

	partner, err := s.accounts.GetByID(ctx, req.PartnerID)
	if err != nil {
		return domain.ReferralInvite{}, err
	}
	if !partner.IsPartner {
		return domain.ReferralInvite{}, domain.ErrNotPartner
	}

	_, err = s.accounts.GetByEmail(ctx, req.Email)
	switch {
	case err == nil:
		return domain.ReferralInvite{}, domain.ErrAlreadyCustomer
	case !errors.Is(err, accountdomain.ErrNotFound):
		return domain.ReferralInvite{}, err
	}

	invite := domain.ReferralInvite{
		ID:        s.genID.Generate(),
		PartnerID: partner.ID,
		Email:     req.Email,
		FullName:  optional(req.FullName),
		Phone:     optional(req.Phone),
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.InsertReferralInvite(ctx, s.db, &invite); err != nil {
		if dbpkg.IsDuplicateKeyErr(err) {
			return domain.ReferralInvite{}, domain.ErrAlreadyInvited
		}
		return domain.ReferralInvite{}, dbpkg.WrapPersistence("insert referral invite", err)
	}

	return invite, nil
}

func (s *Service) ListReferralInvites(ctx context.Context, partnerID snowflake.ID) ([]domain.ReferralInvite, error) {
	if _, err := s.accounts.GetByID(ctx, partnerID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListReferralInvites(ctx, s.db, partnerID)
	if err != nil {
		return nil, dbpkg.WrapPersistence("list referral invites", err)
	}
	invites := make([]domain.ReferralInvite, 0, len(items))
	for _, item := range items {
		if item != nil {
			invites = append(invites, *item)
		}
	}
	return invites, nil
}

func (s *Service) validateInvite(req domain.InviteReferralRequest) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	switch fieldErrs[0].Field() {
	case "FullName":
		return domain.ErrInvalidFullName
	case "Phone":
		return domain.ErrInvalidPhone
	default:
		return domain.ErrInvalidEmail
	}
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
