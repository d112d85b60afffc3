package pdf

import (
	"context"

	commissiondomain "github.com/smallbiznis/referrals/internal/commission/domain"
	"github.com/smallbiznis/referrals/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.pdf",
	fx.Provide(New),
)

type Provider interface {
	RenderStatement(ctx context.Context, statement commissiondomain.Statement) ([]byte, error)
}

type Params struct {
	fx.In

	Settings *config.ReferralConfigHolder `optional:"true"`
}

func New(p Params) Provider {
	return &PDFProvider{settings: p.Settings}
}
