package cache

import (
	"context"
	"math"
	"time"

	expirable "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// LocalLimiter is an in-process per-IP token bucket used when Redis is not
// configured. Idle buckets are evicted by the LRU.
type LocalLimiter struct {
	buckets *expirable.LRU[string, *rate.Limiter]
	now     func() time.Time
}

// NewLocalLimiter tracks at most size clients, forgetting a client after
// idle elapses without a request.
func NewLocalLimiter(size int, idle time.Duration) *LocalLimiter {
	if size <= 0 {
		size = 10000
	}
	return &LocalLimiter{
		buckets: expirable.NewLRU[string, *rate.Limiter](size, nil, idle),
		now:     time.Now,
	}
}

// CheckIPRateLimit has the same contract as Cache.CheckIPRateLimit.
func (l *LocalLimiter) CheckIPRateLimit(_ context.Context, ip string, ratePerSecond, burst int) (*RateLimitResult, error) {
	if ratePerSecond <= 0 {
		return allowAll(burst), nil
	}

	key := hashIP(ip)
	lim, ok := l.buckets.Get(key)
	if !ok {
		lim = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
	}
	// Re-adding refreshes the idle TTL.
	l.buckets.Add(key, lim)

	now := l.now()
	res := lim.ReserveN(now, 1)
	delay := res.DelayFrom(now)
	if delay > 0 {
		res.CancelAt(now)
		return &RateLimitResult{
			Allowed:    false,
			Remaining:  0,
			ResetAt:    now.Add(delay),
			RetryAfter: time.Duration(math.Ceil(delay.Seconds())) * time.Second,
		}, nil
	}

	return &RateLimitResult{
		Allowed:   true,
		Remaining: int64(math.Floor(lim.TokensAt(now))),
		ResetAt:   now.Add(time.Second / time.Duration(ratePerSecond)),
	}, nil
}
