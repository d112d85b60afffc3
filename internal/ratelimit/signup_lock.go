package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/referrals/internal/config"
	"go.uber.org/zap"
)

const keySignupLock = "referrals:signup:lock:"

// SignupLock serializes concurrent deliveries for the same customer email.
// It uses redis when available and an in-process key set otherwise.
type SignupLock struct {
	locker *Locker
	ttl    time.Duration
	log    *zap.Logger

	mu   sync.Mutex
	held map[string]struct{}
}

func NewSignupLock(cfg config.Config, client *redis.Client, log *zap.Logger) *SignupLock {
	ttl := cfg.Webhook.SignupLockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &SignupLock{
		locker: NewLocker(client),
		ttl:    ttl,
		log:    log.Named("ratelimit.signup_lock"),
		held:   make(map[string]struct{}),
	}
}

// Acquire returns acquired=false when another delivery holds the lock.
// The release func is always non-nil and safe to call more than once.
func (l *SignupLock) Acquire(ctx context.Context, email string) (func(), bool, error) {
	key := keySignupLock + strings.ToLower(strings.TrimSpace(email))

	if l.locker == nil {
		return l.acquireLocal(key)
	}

	token, ok, err := l.locker.TryLock(ctx, key, l.ttl)
	if err != nil || !ok {
		return func() {}, false, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be done when releasing.
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if err := l.locker.Release(releaseCtx, key, token); err != nil {
				l.log.Warn("failed to release signup lock", zap.Error(err))
			}
		})
	}, true, nil
}

func (l *SignupLock) acquireLocal(key string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[key]; busy {
		return func() {}, false, nil
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, true, nil
}
