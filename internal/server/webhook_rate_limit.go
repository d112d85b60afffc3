package server

import (
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/referrals/internal/observability/logger"
	"go.uber.org/zap"
)

// WebhookRateLimit throttles inbound deliveries per endpoint and sender. A
// limiter backend failure lets the delivery through; the pipeline's own
// idempotency keeps retries safe.
func (s *Server) WebhookRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.webhookLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)
		result, err := s.webhookLimiter.Allow(ctx, endpoint+":"+c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("webhook rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if result.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(max(result.Remaining, 0)))
		}
		if !result.Allowed {
			logger.FromContext(ctx).Warn("webhook rate limit exceeded", zap.String("endpoint", endpoint))
			s.obsMetrics.RecordWebhookThrottled(ctx, endpoint)
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(result.RetryAfter.Seconds())))
			AbortWithError(c, ErrRateLimited)
			return
		}

		c.Next()
	}
}

func retryAfterSeconds(seconds float64) int {
	return max(int(math.Ceil(seconds)), 1)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
