package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/referrals/internal/account/domain"
)

// DefaultTreeDepth matches the number of commission levels.
const DefaultTreeDepth = 3

// Referral is the outcome of resolving a referrer email. A zero value means
// the signup carries no referral link at all.
type Referral struct {
	ReferrerID snowflake.ID
	// Eligible is true when the referrer may earn commissions right now.
	Eligible bool
}

func (r Referral) Found() bool {
	return r.ReferrerID != 0
}

type TreeNode struct {
	Account  accountdomain.Account
	ParentID snowflake.ID
	Level    int
}

type Tree struct {
	Root  accountdomain.Account
	Nodes []TreeNode
}

type Service interface {
	Resolve(ctx context.Context, referrerEmail string) (Referral, error)
	Tree(ctx context.Context, rootID snowflake.ID, maxLevel int) (Tree, error)
}

var ErrInvalidDepth = errors.New("invalid_max_level")
