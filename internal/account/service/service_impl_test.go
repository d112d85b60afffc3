package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/referrals/internal/account/domain"
	"github.com/smallbiznis/referrals/internal/account/repository"
	"github.com/smallbiznis/referrals/internal/account/service"
	"github.com/smallbiznis/referrals/internal/clock"
	dbpkg "github.com/smallbiznis/referrals/pkg/db"
	"github.com/smallbiznis/referrals/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()

	db := dbtest.Open(t)
	node, err := snowflake.NewNode(10)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	svc := service.New(service.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Clock: clock.NewFakeClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)),
	})
	return svc, db
}

func TestCreateCustomerNormalizesEmail(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)

	referrer := "Partner@Example.com"
	acct, err := svc.CreateCustomer(ctx, domain.CreateCustomerRequest{
		Email:         "  Bob@Example.COM ",
		FullName:      "  Bob Stone ",
		ReferrerEmail: &referrer,
		Metadata:      map[string]any{"event": "user_signup"},
	})
	require.NoError(t, err)

	assert.Equal(t, "bob@example.com", acct.Email)
	assert.Equal(t, "Bob Stone", acct.DisplayName())
	assert.Equal(t, domain.RoleCustomer, acct.Role)
	assert.False(t, acct.IsPartner)
	assert.True(t, acct.Active)
	assert.Nil(t, acct.ReferredBy)

	stored, err := svc.GetByEmail(ctx, "BOB@example.com")
	require.NoError(t, err)
	assert.Equal(t, acct.ID, stored.ID)
	require.NotNil(t, stored.ReferrerEmail)
	assert.Equal(t, referrer, *stored.ReferrerEmail)
	assert.Equal(t, "user_signup", stored.Metadata["event"])

	dbtest.AssertCount(t, db, `SELECT COUNT(*) FROM accounts`, 1)
}

func TestCreateCustomerDuplicateEmailReturnsExists(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)

	_, err := svc.CreateCustomer(ctx, domain.CreateCustomerRequest{Email: "bob@example.com", FullName: "Bob"})
	require.NoError(t, err)

	_, err = svc.CreateCustomer(ctx, domain.CreateCustomerRequest{Email: "Bob@Example.com", FullName: "Bob again"})
	if !errors.Is(err, domain.ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
	dbtest.AssertCount(t, db, `SELECT COUNT(*) FROM accounts`, 1)
}

func TestCreateCustomerValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.CreateCustomer(ctx, domain.CreateCustomerRequest{Email: "nope", FullName: "X"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = svc.CreateCustomer(ctx, domain.CreateCustomerRequest{Email: "x@example.com", FullName: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)
}

func TestPromoteToPartnerIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)

	acct, err := svc.CreateCustomer(ctx, domain.CreateCustomerRequest{Email: "carol@example.com", FullName: "Carol"})
	require.NoError(t, err)

	promoted, err := svc.PromoteToPartner(ctx, acct.ID)
	require.NoError(t, err)
	assert.True(t, promoted.IsPartner)
	assert.Equal(t, domain.RolePartner, promoted.Role)

	_, err = svc.PromoteToPartner(ctx, acct.ID)
	require.NoError(t, err)

	dbtest.AssertCount(t, db, `SELECT COUNT(*) FROM accounts WHERE is_partner = TRUE AND role = 'partner'`, 1)
}

func TestPromoteToPartnerRejectsAdmin(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)

	now := time.Now().UTC()
	require.NoError(t, db.Exec(
		`INSERT INTO accounts (id, email, role, is_partner, active, metadata, created_at, updated_at)
		 VALUES (?, ?, 'admin', FALSE, TRUE, '{}', ?, ?)`,
		42, "root@example.com", now, now,
	).Error)

	_, err := svc.PromoteToPartner(ctx, snowflake.ID(42))
	assert.ErrorIs(t, err, domain.ErrAdminAccount)
	dbtest.AssertCount(t, db, `SELECT COUNT(*) FROM accounts WHERE role = 'admin' AND is_partner = FALSE`, 1)
}

func TestPromoteToPartnerUnknownAccount(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.PromoteToPartner(context.Background(), snowflake.ID(999))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSyncIdentityCreatesThenLinks(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)

	name := "Dana Lee"
	created, err := svc.SyncIdentity(ctx, domain.SyncIdentityRequest{
		IdentityID: "user_123",
		Email:      "Dana@Example.com",
		FullName:   &name,
	})
	require.NoError(t, err)
	require.NotNil(t, created.IdentityID)
	assert.Equal(t, "user_123", *created.IdentityID)
	assert.Equal(t, domain.RoleCustomer, created.Role)

	_, err = svc.PromoteToPartner(ctx, created.ID)
	require.NoError(t, err)

	linked, err := svc.SyncIdentity(ctx, domain.SyncIdentityRequest{
		IdentityID: "user_456",
		Email:      "dana@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, linked.ID)
	assert.Equal(t, "Dana Lee", linked.DisplayName())

	stored, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "user_456", *stored.IdentityID)
	assert.True(t, stored.IsPartner, "identity sync must not touch partner flags")
	dbtest.AssertCount(t, db, `SELECT COUNT(*) FROM accounts`, 1)
}

func TestListReferredBy(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	parent, err := svc.CreateCustomer(ctx, domain.CreateCustomerRequest{Email: "p@example.com", FullName: "P"})
	require.NoError(t, err)
	for _, email := range []string{"c1@example.com", "c2@example.com"} {
		_, err := svc.CreateCustomer(ctx, domain.CreateCustomerRequest{Email: email, FullName: "C", ReferredBy: &parent.ID})
		require.NoError(t, err)
	}

	children, err := svc.ListReferredBy(ctx, []snowflake.ID{parent.ID})
	require.NoError(t, err)
	assert.Len(t, children, 2)

	none, err := svc.ListReferredBy(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetByIDWrapsStoreErrors(t *testing.T) {
	svc, db := newTestService(t)
	require.NoError(t, db.Exec(`DROP TABLE accounts`).Error)

	_, err := svc.GetByID(context.Background(), snowflake.ID(1))
	assert.ErrorIs(t, err, dbpkg.ErrPersistence)
}
