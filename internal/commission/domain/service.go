package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/referrals/internal/account/domain"
	"github.com/smallbiznis/referrals/pkg/db/pagination"
)

type PropagateRequest struct {
	DirectReferrerID snowflake.ID
	CustomerID       snowflake.ID
	SubscriptionID   snowflake.ID
	SetupAmount      decimal.Decimal
	MonthlyAmount    decimal.Decimal
}

// Reasons a referral walk ended.
const (
	StopNoReferrer   = "no_referrer"
	StopChainEnd     = "chain_end"
	StopMaxDepth     = "max_depth"
	StopNotFound     = "not_found"
	StopIneligible   = "ineligible"
	StopLookupFailed = "lookup_failed"
	StopCycle        = "cycle"
)

type PropagateResult struct {
	Entries []Entry
	// Failed counts ledger inserts that errored and were skipped.
	Failed int
	// StoppedAt is the level at which the walk ended without crediting,
	// or MaxDepth+1 when every level was credited.
	StoppedAt  int
	StopReason string
}

type ListEntriesRequest struct {
	PartnerID snowflake.ID
	pagination.Pagination
}

type ListEntriesResponse struct {
	pagination.PageInfo
	Entries []Entry `json:"entries"`
}

type CustomerCommission struct {
	CustomerID snowflake.ID
	Email      string
	FullName   string
	Total      decimal.Decimal
}

type Summary struct {
	PartnerID     snowflake.ID
	PeriodStart   time.Time
	PeriodEnd     time.Time
	Direct        []CustomerCommission
	DirectTotal   decimal.Decimal
	IndirectTotal decimal.Decimal
	Total         decimal.Decimal
}

type Statement struct {
	Partner accountdomain.Account
	Summary Summary
	Entries []Entry
}

type Service interface {
	Propagate(ctx context.Context, req PropagateRequest) (PropagateResult, error)
	List(ctx context.Context, req ListEntriesRequest) (ListEntriesResponse, error)
	Summary(ctx context.Context, partnerID snowflake.ID) (Summary, error)
	Statement(ctx context.Context, partnerID snowflake.ID) (Statement, error)
}

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInvalidAmount  = errors.New("invalid_amount")
	ErrInvalidPartner = errors.New("invalid_partner")
)
