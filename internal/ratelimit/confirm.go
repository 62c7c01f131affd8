package ratelimit

import (
	"context"

	"github.com/smallbiznis/storefront/internal/config"
)

// ConfirmLimiter throttles the public payment-confirm endpoints per member.
// A nil limiter (rate limiting disabled or redis unavailable) allows
// everything; payment availability wins over throttling.
type ConfirmLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewConfirmLimiter(cfg config.Config, bucket *TokenBucket) *ConfirmLimiter {
	if !cfg.RateLimit.Enabled || bucket == nil {
		return nil
	}
	return &ConfirmLimiter{
		bucket: bucket,
		rate:   cfg.RateLimit.ConfirmRate,
		burst:  cfg.RateLimit.ConfirmBurst,
	}
}

func (l *ConfirmLimiter) Allow(ctx context.Context, memberKey string) (*RateLimitResult, error) {
	if l == nil {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, "ratelimit:confirm:"+memberKey, l.rate, l.burst)
}
