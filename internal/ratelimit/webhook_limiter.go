package ratelimit

import (
	"context"
	"errors"
	"sync"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/referrals/internal/config"
	"golang.org/x/time/rate"
)

const keyWebhookBucket = "referrals:webhook:"

// WebhookLimiter throttles webhook deliveries per source. A nil limiter
// allows everything.
type WebhookLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int

	mu    sync.Mutex
	local map[string]*rate.Limiter
}

func NewWebhookLimiter(cfg config.Config, client *redis.Client) (*WebhookLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}
	if limitCfg.WebhookRate <= 0 || limitCfg.WebhookBurst <= 0 {
		return nil, errors.New("webhook rate limit must be positive")
	}
	return &WebhookLimiter{
		bucket: NewTokenBucket(client),
		rate:   limitCfg.WebhookRate,
		burst:  limitCfg.WebhookBurst,
		local:  make(map[string]*rate.Limiter),
	}, nil
}

func (l *WebhookLimiter) Enabled() bool {
	return l != nil
}

func (l *WebhookLimiter) Allow(ctx context.Context, source string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	if l.bucket != nil {
		return l.bucket.Allow(ctx, keyWebhookBucket+source, l.rate, l.burst)
	}
	return l.allowLocal(source), nil
}

func (l *WebhookLimiter) allowLocal(source string) *RateLimitResult {
	l.mu.Lock()
	limiter, ok := l.local[source]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(l.rate), l.burst)
		l.local[source] = limiter
	}
	l.mu.Unlock()

	reservation := limiter.Reserve()
	delay := reservation.Delay()
	if delay > 0 {
		reservation.Cancel()
		return &RateLimitResult{Allowed: false, Limit: l.burst, RetryAfter: delay}
	}
	return &RateLimitResult{Allowed: true, Limit: l.burst, Remaining: int(limiter.Tokens())}
}
