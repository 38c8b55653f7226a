package scraper

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// newRateLimiter spreads requests evenly over interval and allows a burst of
// the whole allowance. A non-positive allowance disables limiting.
func newRateLimiter(requests int, interval time.Duration) *rate.Limiter {
	if requests <= 0 || interval <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(interval/time.Duration(requests)), requests)
}

func waitTurn(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

// retryAfterBackOff waits at least as long as the server last asked.
type retryAfterBackOff struct {
	backoff.BackOff
	floor time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if b.floor > next {
		next = b.floor
	}
	b.floor = 0
	return next
}
