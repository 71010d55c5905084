package geo

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/catclicker/catclicker/internal/metrics"
)

// Resolver runs the provider chain in order and falls back to
// DefaultLocation. Successful lookups are cached; the fallback is not.
type Resolver struct {
	providers []Provider
	cache     Cache
	timeout   time.Duration
	metrics   metrics.Recorder
	logger    *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithCache sets the location cache.
func WithCache(c Cache) ResolverOption {
	return func(r *Resolver) { r.cache = c }
}

// WithTimeout bounds each provider call.
func WithTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) { r.timeout = d }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) ResolverOption {
	return func(r *Resolver) { r.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a Resolver over providers, tried in order.
func NewResolver(providers []Provider, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		providers: providers,
		timeout:   3 * time.Second,
		metrics:   metrics.NewNoop(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "geo")
	return r
}

// Resolve returns the location for ip. It never fails: when the address is
// unusable or every provider errors, DefaultLocation is returned.
func (r *Resolver) Resolve(ctx context.Context, ip string) Location {
	clean := CleanIP(ip)
	if clean == "" {
		r.metrics.IncGeoFallback()
		return DefaultLocation(ip)
	}

	if r.cache != nil {
		loc, ok, err := r.cache.Get(ctx, clean)
		if err != nil {
			r.logger.Debug("geo_cache_get_failed", "error", err)
		}
		if ok {
			r.metrics.IncGeoCacheHit()
			return loc
		}
		r.metrics.IncGeoCacheMiss()
	}

	for _, p := range r.providers {
		loc, err := r.lookup(ctx, p, clean)
		if err != nil {
			level := slog.LevelWarn
			if errors.Is(err, ErrNoResult) || errors.Is(err, ErrRateLimited) {
				level = slog.LevelDebug
			}
			r.logger.Log(ctx, level, "geo_lookup_failed",
				"provider", p.Name(),
				"error", err,
			)
			continue
		}

		loc = normalize(loc, clean, p.Name())
		if r.cache != nil {
			if err := r.cache.Set(ctx, clean, loc); err != nil {
				r.logger.Debug("geo_cache_set_failed", "error", err)
			}
		}
		return loc
	}

	r.metrics.IncGeoFallback()
	r.logger.Info("geo_fallback", "ip", clean)
	return DefaultLocation(clean)
}

func (r *Resolver) lookup(ctx context.Context, p Provider, ip string) (Location, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	loc, err := p.Lookup(ctx, ip)
	status := "success"
	if err != nil {
		status = "error"
	} else if loc.CountryCode == "" {
		status = "error"
		err = ErrNoResult
	}
	r.metrics.ObserveGeoLookup(p.Name(), status, time.Since(start))

	return loc, err
}
