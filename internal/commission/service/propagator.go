package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/referrals/internal/account/domain"
	"github.com/smallbiznis/referrals/internal/commission/domain"
	obslogger "github.com/smallbiznis/referrals/internal/observability/logger"
	dbpkg "github.com/smallbiznis/referrals/pkg/db"
	"go.uber.org/zap"
)

// Propagate walks the referral chain upward from the direct referrer and
// writes one ledger entry per level per non-zero fee. The walk is strictly
// sequential and stops at the first missing or ineligible ancestor; it never
// skips ahead to the next one. Ledger insert failures are logged and counted
// but do not abort the walk, and no error from the walk itself is returned
// once the request is valid.
func (s *Service) Propagate(ctx context.Context, req domain.PropagateRequest) (domain.PropagateResult, error) {
	if req.CustomerID == 0 || req.SubscriptionID == 0 {
		return domain.PropagateResult{}, domain.ErrInvalidRequest
	}
	if req.SetupAmount.IsNegative() || req.MonthlyAmount.IsNegative() {
		return domain.PropagateResult{}, domain.ErrInvalidAmount
	}

	log := obslogger.WithContext(ctx, s.log).With(
		zap.String("customer_id", req.CustomerID.String()),
		zap.String("subscription_id", req.SubscriptionID.String()),
	)

	result := domain.PropagateResult{Entries: make([]domain.Entry, 0, domain.MaxDepth*2)}
	if req.DirectReferrerID == 0 {
		result.StoppedAt = 1
		result.StopReason = domain.StopNoReferrer
		return result, nil
	}

	fees := []struct {
		feeType domain.FeeType
		amount  decimal.Decimal
	}{
		{domain.FeeTypeSetup, req.SetupAmount},
		{domain.FeeTypeMonthly, req.MonthlyAmount},
	}

	visited := make(map[snowflake.ID]struct{}, domain.MaxDepth)
	visited[req.CustomerID] = struct{}{}

	current := req.DirectReferrerID
	for level := 1; level <= domain.MaxDepth; level++ {
		if _, seen := visited[current]; seen {
			log.Warn("referral chain loops back on itself", zap.Int("level", level), zap.String("account_id", current.String()))
			return stop(result, level, domain.StopCycle), nil
		}
		visited[current] = struct{}{}

		ancestor, reason := s.loadAncestor(ctx, log, current, level)
		if reason != "" {
			return stop(result, level, reason), nil
		}

		rate := domain.RateFor(level)
		for _, fee := range fees {
			if !fee.amount.IsPositive() {
				continue
			}
			entry, err := s.writeEntry(ctx, ancestor.ID, req, level, fee.feeType, rate, fee.amount)
			if err != nil {
				result.Failed++
				s.metrics.RecordCommissionFailure(ctx, string(fee.feeType), level)
				log.Warn("failed to insert commission entry",
					zap.Int("level", level),
					zap.String("fee_type", string(fee.feeType)),
					zap.String("recipient_id", ancestor.ID.String()),
					zap.Error(err),
				)
				continue
			}
			result.Entries = append(result.Entries, entry)
			s.metrics.RecordCommissionEntry(ctx, string(fee.feeType), level)
		}

		if ancestor.ReferredBy == nil || *ancestor.ReferredBy == 0 {
			if level < domain.MaxDepth {
				return stop(result, level+1, domain.StopChainEnd), nil
			}
			break
		}
		current = *ancestor.ReferredBy
	}

	return stop(result, domain.MaxDepth+1, domain.StopMaxDepth), nil
}

// loadAncestor returns a stop reason when the walk must end at this level.
func (s *Service) loadAncestor(ctx context.Context, log *zap.Logger, id snowflake.ID, level int) (accountdomain.Account, string) {
	callCtx, cancel := dbpkg.WithCallTimeout(ctx, s.callTimeout)
	defer cancel()

	ancestor, err := s.accounts.GetByID(callCtx, id)
	switch {
	case err == nil:
	case isNotFound(err):
		log.Info("referral chain ends at missing account", zap.Int("level", level), zap.String("account_id", id.String()))
		return accountdomain.Account{}, domain.StopNotFound
	default:
		log.Warn("failed to load referral ancestor", zap.Int("level", level), zap.String("account_id", id.String()), zap.Error(err))
		return accountdomain.Account{}, domain.StopLookupFailed
	}

	if !ancestor.CommissionEligible() {
		log.Info("referral chain stops at ineligible account",
			zap.Int("level", level),
			zap.String("account_id", id.String()),
			zap.Bool("is_partner", ancestor.IsPartner),
			zap.Bool("active", ancestor.Active),
			zap.String("role", string(ancestor.Role)),
		)
		return accountdomain.Account{}, domain.StopIneligible
	}
	return ancestor, ""
}

func (s *Service) writeEntry(ctx context.Context, recipientID snowflake.ID, req domain.PropagateRequest, level int, feeType domain.FeeType, rate, fee decimal.Decimal) (domain.Entry, error) {
	entry := domain.Entry{
		ID:             s.genID.Generate(),
		RecipientID:    recipientID,
		CustomerID:     req.CustomerID,
		SubscriptionID: req.SubscriptionID,
		Level:          level,
		FeeType:        feeType,
		Rate:           rate,
		Amount:         domain.Amount(fee, rate),
		CreatedAt:      s.clock.Now(),
	}

	callCtx, cancel := dbpkg.WithCallTimeout(ctx, s.callTimeout)
	defer cancel()

	if err := s.repo.Insert(callCtx, s.db, &entry); err != nil {
		return domain.Entry{}, dbpkg.WrapPersistence("insert commission entry", err)
	}
	return entry, nil
}

func stop(result domain.PropagateResult, level int, reason string) domain.PropagateResult {
	result.StoppedAt = level
	result.StopReason = reason
	return result
}

func isNotFound(err error) bool {
	return errors.Is(err, accountdomain.ErrNotFound)
}
