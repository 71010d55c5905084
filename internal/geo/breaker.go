package geo

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerSettings configures the circuit breaker around a provider.
type BreakerSettings struct {
	FailureThreshold uint32        // consecutive failures before opening
	OpenTimeout      time.Duration // time spent open before a half-open trial request
	Interval         time.Duration // count reset period while closed
}

// DefaultBreakerSettings returns the settings used by the server.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
		Interval:         time.Minute,
	}
}

type breakerProvider struct {
	inner Provider
	cb    *gobreaker.CircuitBreaker[Location]
}

// WithBreaker wraps p in a circuit breaker. ErrNoResult answers count as
// successes; only transport-level failures trip the breaker.
func WithBreaker(p Provider, s BreakerSettings, logger *slog.Logger) Provider {
	if logger == nil {
		logger = slog.Default()
	}
	threshold := s.FailureThreshold
	if threshold == 0 {
		threshold = 1
	}

	cb := gobreaker.NewCircuitBreaker[Location](gobreaker.Settings{
		Name:        p.Name(),
		MaxRequests: 1,
		Interval:    s.Interval,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoResult) || errors.Is(err, ErrInvalidIP)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("geo_breaker_state_change",
				"provider", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &breakerProvider{inner: p, cb: cb}
}

func (b *breakerProvider) Name() string { return b.inner.Name() }

func (b *breakerProvider) Lookup(ctx context.Context, ip string) (Location, error) {
	return b.cb.Execute(func() (Location, error) {
		return b.inner.Lookup(ctx, ip)
	})
}
