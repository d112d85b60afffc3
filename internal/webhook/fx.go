package webhook

import (
	"github.com/smallbiznis/referrals/internal/config"
	"github.com/smallbiznis/referrals/internal/ratelimit"
	"github.com/smallbiznis/referrals/internal/webhook/domain"
	"github.com/smallbiznis/referrals/internal/webhook/repository"
	"github.com/smallbiznis/referrals/internal/webhook/service"
	"go.uber.org/fx"
)

var Module = fx.Module("webhook.service",
	fx.Provide(NewVerifier),
	fx.Provide(NewSignupLock),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

// NewVerifier refuses to start the application without a shared secret.
func NewVerifier(cfg config.Config) (*domain.Verifier, error) {
	return domain.NewVerifier(cfg.Webhook.Secret)
}

func NewSignupLock(lock *ratelimit.SignupLock) domain.SignupLock {
	return lock
}
