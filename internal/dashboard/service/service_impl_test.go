package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/smallbiznis/referrals/internal/clock"
	"github.com/smallbiznis/referrals/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOverviewCountsCurrentMonth(t *testing.T) {
	db := dbtest.Open(t)
	now := time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)
	thisMonth := time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)
	lastMonth := time.Date(2026, 4, 28, 8, 0, 0, 0, time.UTC)

	accounts := []struct {
		id        int64
		role      string
		isPartner bool
		createdAt time.Time
	}{
		{1, "partner", true, lastMonth},
		{2, "partner", true, thisMonth},
		{3, "customer", false, thisMonth},
		{4, "customer", false, lastMonth},
		{5, "admin", false, thisMonth},
	}
	for _, a := range accounts {
		require.NoError(t, db.Exec(
			`INSERT INTO accounts (id, email, role, is_partner, active, metadata, created_at, updated_at)
			 VALUES (?, ?, ?, ?, TRUE, '{}', ?, ?)`,
			a.id, fmt.Sprintf("user%d@example.com", a.id), a.role, a.isPartner, a.createdAt, a.createdAt,
		).Error)
	}
	require.NoError(t, db.Exec(
		`INSERT INTO subscriptions (id, account_id, setup_amount, monthly_amount, paid_at, created_at)
		 VALUES (10, 3, 100, 10, ?, ?), (11, 4, 50, 5, ?, ?)`,
		thisMonth, thisMonth, lastMonth, lastMonth,
	).Error)
	require.NoError(t, db.Exec(
		`INSERT INTO commission_entries (id, recipient_id, customer_id, subscription_id, level, fee_type, rate, amount, created_at)
		 VALUES (20, 1, 3, 10, 1, 'setup', 0.10, 10.00, ?),
		        (21, 1, 3, 10, 1, 'monthly', 0.10, 1.00, ?),
		        (22, 1, 4, 11, 1, 'setup', 0.10, 5.00, ?)`,
		thisMonth, thisMonth, lastMonth,
	).Error)

	svc := NewService(Params{DB: db, Log: zap.NewNop(), Clock: clock.NewFakeClock(now)})
	overview, err := svc.Overview(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 4, overview.Accounts)
	assert.EqualValues(t, 2, overview.Partners)
	assert.EqualValues(t, 2, overview.Subscriptions)
	assert.EqualValues(t, 1, overview.SignupsMTD)
	assert.EqualValues(t, 2, overview.CommissionEntries)
	assert.Equal(t, "11.00", overview.CommissionMTD.StringFixed(2))
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), overview.PeriodStart)
}

func TestOverviewEmptyStore(t *testing.T) {
	svc := NewService(Params{DB: dbtest.Open(t), Log: zap.NewNop()})

	overview, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.Zero(t, overview.Accounts)
	assert.True(t, overview.CommissionMTD.IsZero())
}
