package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/referrals/internal/account/domain"
	"github.com/smallbiznis/referrals/internal/referral/domain"
	"github.com/smallbiznis/referrals/internal/referral/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type accountsMock struct {
	mock.Mock
	accountdomain.Service
}

func (m *accountsMock) GetByEmail(ctx context.Context, email string) (accountdomain.Account, error) {
	args := m.Called(email)
	return args.Get(0).(accountdomain.Account), args.Error(1)
}

func (m *accountsMock) GetByID(ctx context.Context, id snowflake.ID) (accountdomain.Account, error) {
	args := m.Called(id)
	return args.Get(0).(accountdomain.Account), args.Error(1)
}

func (m *accountsMock) ListReferredBy(ctx context.Context, ids []snowflake.ID) ([]accountdomain.Account, error) {
	args := m.Called(ids)
	return args.Get(0).([]accountdomain.Account), args.Error(1)
}

func newService(accounts *accountsMock) domain.Service {
	return service.New(service.Params{Log: zap.NewNop(), Accounts: accounts})
}

func TestResolveEmptyEmail(t *testing.T) {
	accounts := &accountsMock{}
	ref, err := newService(accounts).Resolve(context.Background(), "   ")

	require.NoError(t, err)
	assert.False(t, ref.Found())
	accounts.AssertNotCalled(t, "GetByEmail", mock.Anything)
}

func TestResolveUnknownReferrerIsNotAnError(t *testing.T) {
	accounts := &accountsMock{}
	accounts.On("GetByEmail", "ghost@example.com").Return(accountdomain.Account{}, accountdomain.ErrNotFound)

	ref, err := newService(accounts).Resolve(context.Background(), "Ghost@Example.com")

	require.NoError(t, err)
	assert.False(t, ref.Found())
	assert.False(t, ref.Eligible)
}

func TestResolveEligibility(t *testing.T) {
	cases := []struct {
		name     string
		account  accountdomain.Account
		eligible bool
	}{
		{"active partner", accountdomain.Account{ID: 1, Role: accountdomain.RolePartner, IsPartner: true, Active: true}, true},
		{"inactive partner", accountdomain.Account{ID: 2, Role: accountdomain.RolePartner, IsPartner: true, Active: false}, false},
		{"customer", accountdomain.Account{ID: 3, Role: accountdomain.RoleCustomer, Active: true}, false},
		{"admin", accountdomain.Account{ID: 4, Role: accountdomain.RoleAdmin, IsPartner: true, Active: true}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			accounts := &accountsMock{}
			accounts.On("GetByEmail", "ref@example.com").Return(tc.account, nil)

			ref, err := newService(accounts).Resolve(context.Background(), "REF@example.com")

			require.NoError(t, err)
			assert.Equal(t, tc.account.ID, ref.ReferrerID)
			assert.Equal(t, tc.eligible, ref.Eligible)
		})
	}
}

func TestResolvePropagatesStoreErrors(t *testing.T) {
	accounts := &accountsMock{}
	storeErr := errors.New("connection reset")
	accounts.On("GetByEmail", "ref@example.com").Return(accountdomain.Account{}, storeErr)

	_, err := newService(accounts).Resolve(context.Background(), "ref@example.com")
	assert.ErrorIs(t, err, storeErr)
}

func ptr(id snowflake.ID) *snowflake.ID { return &id }

func TestTreeIsBreadthFirstAndCapped(t *testing.T) {
	accounts := &accountsMock{}
	accounts.On("GetByID", snowflake.ID(1)).Return(accountdomain.Account{ID: 1}, nil)
	accounts.On("ListReferredBy", []snowflake.ID{1}).Return([]accountdomain.Account{
		{ID: 2, ReferredBy: ptr(1)},
		{ID: 3, ReferredBy: ptr(1)},
	}, nil)
	accounts.On("ListReferredBy", []snowflake.ID{2, 3}).Return([]accountdomain.Account{
		{ID: 4, ReferredBy: ptr(2)},
	}, nil)
	accounts.On("ListReferredBy", []snowflake.ID{4}).Return([]accountdomain.Account{
		{ID: 5, ReferredBy: ptr(4)},
	}, nil)

	tree, err := newService(accounts).Tree(context.Background(), snowflake.ID(1), 10)
	require.NoError(t, err)

	require.Len(t, tree.Nodes, 4)
	assert.Equal(t, 1, tree.Nodes[0].Level)
	assert.Equal(t, snowflake.ID(4), tree.Nodes[2].Account.ID)
	assert.Equal(t, snowflake.ID(2), tree.Nodes[2].ParentID)
	assert.Equal(t, 3, tree.Nodes[3].Level)
	accounts.AssertNumberOfCalls(t, "ListReferredBy", 3)
}

func TestTreeRespectsRequestedDepth(t *testing.T) {
	accounts := &accountsMock{}
	accounts.On("GetByID", snowflake.ID(1)).Return(accountdomain.Account{ID: 1}, nil)
	accounts.On("ListReferredBy", []snowflake.ID{1}).Return([]accountdomain.Account{{ID: 2, ReferredBy: ptr(1)}}, nil)

	tree, err := newService(accounts).Tree(context.Background(), snowflake.ID(1), 1)
	require.NoError(t, err)
	assert.Len(t, tree.Nodes, 1)
	accounts.AssertNumberOfCalls(t, "ListReferredBy", 1)

	_, err = newService(accounts).Tree(context.Background(), snowflake.ID(1), -1)
	assert.ErrorIs(t, err, domain.ErrInvalidDepth)
}
