package coinbase

import (
	"context"

	"golang.org/x/time/rate"
)

const (
	defaultPublicRPS  = 10
	defaultPrivateRPS = 15
)

// RateLimiter keeps separate token buckets for public and private endpoints.
type RateLimiter struct {
	public  *rate.Limiter
	private *rate.Limiter
}

func NewRateLimiter(publicPerSecond, privatePerSecond int) *RateLimiter {
	return &RateLimiter{
		public:  rate.NewLimiter(rate.Limit(publicPerSecond), publicPerSecond),
		private: rate.NewLimiter(rate.Limit(privatePerSecond), privatePerSecond),
	}
}

func (rl *RateLimiter) WaitForPublic(ctx context.Context) error {
	return rl.public.Wait(ctx)
}

func (rl *RateLimiter) WaitForPrivate(ctx context.Context) error {
	return rl.private.Wait(ctx)
}
