package service

import (
	"context"
	"errors"
	"time"

	accountdomain "github.com/smallbiznis/referrals/internal/account/domain"
	dbpkg "github.com/smallbiznis/referrals/pkg/db"
)

// guard is the fast-path duplicate check. The unique index on lower(email)
// stays the authoritative boundary; see createCustomer handling in signup.go.
type guard struct {
	accounts accountdomain.Service
	timeout  time.Duration
}

// CheckSignup returns the existing account when the email is already known.
func (g guard) CheckSignup(ctx context.Context, email string) (*accountdomain.Account, error) {
	acct, err := g.lookup(ctx, email)
	switch {
	case err == nil:
		return &acct, nil
	case errors.Is(err, accountdomain.ErrNotFound):
		return nil, nil
	default:
		return nil, persistenceErr("check signup", err)
	}
}

// CheckUpgrade fails with accountdomain.ErrNotFound for unknown emails and
// reports whether the account is already a partner.
func (g guard) CheckUpgrade(ctx context.Context, email string) (*accountdomain.Account, bool, error) {
	acct, err := g.lookup(ctx, email)
	switch {
	case err == nil:
		return &acct, acct.IsPartner, nil
	case errors.Is(err, accountdomain.ErrNotFound):
		return nil, false, accountdomain.ErrNotFound
	default:
		return nil, false, persistenceErr("check upgrade", err)
	}
}

func (g guard) lookup(ctx context.Context, email string) (accountdomain.Account, error) {
	callCtx, cancel := dbpkg.WithCallTimeout(ctx, g.timeout)
	defer cancel()
	return g.accounts.GetByEmail(callCtx, email)
}

// persistenceErr makes sure store timeouts surface as persistence errors.
func persistenceErr(op string, err error) error {
	if err == nil || errors.Is(err, dbpkg.ErrPersistence) {
		return err
	}
	if dbpkg.IsTimeout(err) {
		return dbpkg.WrapPersistence(op, err)
	}
	return err
}
