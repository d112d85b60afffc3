package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/referrals/internal/account/domain"
	accountrepo "github.com/smallbiznis/referrals/internal/account/repository"
	accountservice "github.com/smallbiznis/referrals/internal/account/service"
	"github.com/smallbiznis/referrals/internal/clock"
	"github.com/smallbiznis/referrals/internal/config"
	"github.com/smallbiznis/referrals/internal/invitation/domain"
	"github.com/smallbiznis/referrals/internal/invitation/repository"
	"github.com/smallbiznis/referrals/internal/invitation/service"
	"github.com/smallbiznis/referrals/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type notifierMock struct {
	mock.Mock
}

func (m *notifierMock) Name() string { return "mock" }

func (m *notifierMock) SendPartnerInvitation(ctx context.Context, email string, metadata map[string]any) error {
	args := m.Called(email, metadata)
	return args.Error(0)
}

type fixture struct {
	db       *gorm.DB
	accounts accountdomain.Service
	svc      domain.Service
}

func newFixture(t *testing.T, notifier domain.Notifier) fixture {
	t.Helper()

	db := dbtest.Open(t)
	node, err := snowflake.NewNode(10)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))

	accounts := accountservice.New(accountservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  accountrepo.Provide(),
		Clock: clk,
	})

	cfg := config.Config{Webhook: config.WebhookConfig{CallTimeout: time.Second}}
	svc := service.New(service.Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Repo:     repository.Provide(),
		Accounts: accounts,
		Notifier: notifier,
		Cfg:      cfg,
		Clock:    clk,
	})
	return fixture{db: db, accounts: accounts, svc: svc}
}

func (f fixture) partner(t *testing.T, email string) accountdomain.Account {
	t.Helper()
	ctx := context.Background()
	acct, err := f.accounts.CreateCustomer(ctx, accountdomain.CreateCustomerRequest{Email: email, FullName: "Pat Partner"})
	require.NoError(t, err)
	acct, err = f.accounts.PromoteToPartner(ctx, acct.ID)
	require.NoError(t, err)
	return acct
}

func TestNotifyPartnerRecordsSentAttempt(t *testing.T) {
	notifier := &notifierMock{}
	f := newFixture(t, notifier)
	partner := f.partner(t, "pat@example.com")

	notifier.On("SendPartnerInvitation", "pat@example.com", mock.MatchedBy(func(md map[string]any) bool {
		return md["role"] == "partner" && md["account_id"] == partner.ID.String()
	})).Return(nil).Once()

	require.NoError(t, f.svc.NotifyPartner(context.Background(), partner))
	notifier.AssertExpectations(t)

	attempts, err := f.svc.ListAttempts(context.Background(), partner.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, domain.AttemptSent, attempts[0].Status)
	assert.Equal(t, "mock", attempts[0].Provider)
	assert.Nil(t, attempts[0].Error)
}

func TestNotifyPartnerFailureIsRecordedAndReturned(t *testing.T) {
	notifier := &notifierMock{}
	f := newFixture(t, notifier)
	partner := f.partner(t, "pat@example.com")

	notifier.On("SendPartnerInvitation", "pat@example.com", mock.Anything).Return(errors.New("identity api returned 503")).Once()

	err := f.svc.NotifyPartner(context.Background(), partner)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotificationFailed)

	attempts, err := f.svc.ListAttempts(context.Background(), partner.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, domain.AttemptFailed, attempts[0].Status)
	require.NotNil(t, attempts[0].Error)
	assert.Contains(t, *attempts[0].Error, "503")

	// The partner promotion is untouched by the failed notification.
	stored, err := f.accounts.GetByID(context.Background(), partner.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsPartner)
}

func TestNotifyPartnerDefaultsToNoOp(t *testing.T) {
	f := newFixture(t, nil)
	partner := f.partner(t, "pat@example.com")

	require.NoError(t, f.svc.NotifyPartner(context.Background(), partner))
	dbtest.AssertCount(t, f.db, `SELECT COUNT(*) FROM partner_invitations WHERE provider = ?`, 1, "noop")
}

func TestInviteReferral(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	partner := f.partner(t, "pat@example.com")

	invite, err := f.svc.InviteReferral(ctx, domain.InviteReferralRequest{
		PartnerID: partner.ID,
		FullName:  " Carol O'Neil ",
		Email:     "Carol@Example.com",
		Phone:     "+62 812-3456-7890",
	})
	require.NoError(t, err)
	assert.Equal(t, "carol@example.com", invite.Email)
	require.NotNil(t, invite.FullName)
	assert.Equal(t, "Carol O'Neil", *invite.FullName)

	_, err = f.svc.InviteReferral(ctx, domain.InviteReferralRequest{PartnerID: partner.ID, Email: "CAROL@example.com"})
	assert.ErrorIs(t, err, domain.ErrAlreadyInvited)

	_, err = f.svc.InviteReferral(ctx, domain.InviteReferralRequest{PartnerID: partner.ID, Email: "dave@example.com"})
	require.NoError(t, err)

	invites, err := f.svc.ListReferralInvites(ctx, partner.ID)
	require.NoError(t, err)
	require.Len(t, invites, 2)

	phones := make(map[string]*string, len(invites))
	for _, inv := range invites {
		phones[inv.Email] = inv.Phone
	}
	require.NotNil(t, phones["carol@example.com"])
	assert.Equal(t, "+62 812-3456-7890", *phones["carol@example.com"])
	assert.Nil(t, phones["dave@example.com"])
}

func TestInviteReferralRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	partner := f.partner(t, "pat@example.com")
	customer, err := f.accounts.CreateCustomer(ctx, accountdomain.CreateCustomerRequest{Email: "dan@example.com", FullName: "Dan"})
	require.NoError(t, err)

	cases := []struct {
		name string
		req  domain.InviteReferralRequest
		want error
	}{
		{"bad email", domain.InviteReferralRequest{PartnerID: partner.ID, Email: "not-an-email"}, domain.ErrInvalidEmail},
		{"missing email", domain.InviteReferralRequest{PartnerID: partner.ID}, domain.ErrInvalidEmail},
		{"bad name", domain.InviteReferralRequest{PartnerID: partner.ID, Email: "x@example.com", FullName: "R2D2"}, domain.ErrInvalidFullName},
		{"bad phone", domain.InviteReferralRequest{PartnerID: partner.ID, Email: "x@example.com", Phone: "call me"}, domain.ErrInvalidPhone},
		{"existing customer", domain.InviteReferralRequest{PartnerID: partner.ID, Email: "DAN@example.com"}, domain.ErrAlreadyCustomer},
		{"not a partner", domain.InviteReferralRequest{PartnerID: customer.ID, Email: "x@example.com"}, domain.ErrNotPartner},
		{"unknown partner", domain.InviteReferralRequest{PartnerID: 42, Email: "x@example.com"}, accountdomain.ErrNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.InviteReferral(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	dbtest.AssertCount(t, f.db, `SELECT COUNT(*) FROM referral_invites`, 0)
}
