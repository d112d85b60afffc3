package seed

import (
	"testing"

	"github.com/smallbiznis/referrals/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureAdminIsIdempotent(t *testing.T) {
	db := dbtest.Open(t)

	require.NoError(t, EnsureAdmin(db, " Ops@Example.com ", ""))
	require.NoError(t, EnsureAdmin(db, "ops@example.com", "Someone Else"))

	dbtest.AssertCount(t, db, `SELECT COUNT(*) FROM accounts WHERE email = 'ops@example.com' AND role = 'admin'`, 1)
	dbtest.AssertCount(t, db, `SELECT COUNT(*) FROM accounts WHERE full_name = 'Referrals Admin'`, 1)
}

func TestEnsureAdminRejectsBadEmail(t *testing.T) {
	assert.ErrorIs(t, EnsureAdmin(dbtest.Open(t), "nope", ""), ErrInvalidAdminEmail)
}
