package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/referrals/internal/account/domain"
	obslogger "github.com/smallbiznis/referrals/internal/observability/logger"
	"github.com/smallbiznis/referrals/internal/referral/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Accounts accountdomain.Service
}

type Service struct {
	log      *zap.Logger
	accounts accountdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("referral.service"),
		accounts: p.Accounts,
	}
}

// Resolve never fails a signup because of a dangling referrer: an unknown
// email yields an empty Referral. Only store errors are returned.
func (s *Service) Resolve(ctx context.Context, referrerEmail string) (domain.Referral, error) {
	email := accountdomain.NormalizeEmail(referrerEmail)
	if email == "" {
		return domain.Referral{}, nil
	}

	referrer, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, accountdomain.ErrNotFound) || errors.Is(err, accountdomain.ErrInvalidEmail) {
			obslogger.WithContext(ctx, s.log).Info("referrer not found")
			return domain.Referral{}, nil
		}
		return domain.Referral{}, err
	}

	return domain.Referral{
		ReferrerID: referrer.ID,
		Eligible:   referrer.CommissionEligible(),
	}, nil
}

// Tree lists descendants breadth-first, one referred_by lookup per level.
func (s *Service) Tree(ctx context.Context, rootID snowflake.ID, maxLevel int) (domain.Tree, error) {
	switch {
	case maxLevel == 0:
		maxLevel = domain.DefaultTreeDepth
	case maxLevel < 0:
		return domain.Tree{}, domain.ErrInvalidDepth
	case maxLevel > domain.DefaultTreeDepth:
		maxLevel = domain.DefaultTreeDepth
	}

	root, err := s.accounts.GetByID(ctx, rootID)
	if err != nil {
		return domain.Tree{}, err
	}

	tree := domain.Tree{Root: root}
	seen := map[snowflake.ID]struct{}{root.ID: {}}
	frontier := []snowflake.ID{root.ID}
	for level := 1; level <= maxLevel && len(frontier) > 0; level++ {
		children, err := s.accounts.ListReferredBy(ctx, frontier)
		if err != nil {
			return domain.Tree{}, err
		}

		next := make([]snowflake.ID, 0, len(children))
		for _, child := range children {
			if _, ok := seen[child.ID]; ok {
				continue
			}
			seen[child.ID] = struct{}{}

			var parentID snowflake.ID
			if child.ReferredBy != nil {
				parentID = *child.ReferredBy
			}
			tree.Nodes = append(tree.Nodes, domain.TreeNode{
				Account:  child,
				ParentID: parentID,
				Level:    level,
			})
			next = append(next, child.ID)
		}
		frontier = next
	}

	return tree, nil
}
