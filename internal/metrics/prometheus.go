package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "catclicker"

// PrometheusRecorder implements Recorder on a dedicated Prometheus registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	clicksAccepted     *prometheus.CounterVec
	submissionsDenied  *prometheus.CounterVec
	submissionsInvalid prometheus.Counter
	submitDuration     prometheus.Histogram
	countriesTracked   prometheus.Gauge
	geoLookups         *prometheus.HistogramVec
	geoCache           *prometheus.CounterVec
	geoFallbacks       prometheus.Counter
	rateLimited        prometheus.Counter
	liveSubscribers    prometheus.Gauge
	snapshotFlushes    *prometheus.CounterVec
}

// NewPrometheus creates a recorder with Go runtime and process collectors
// registered alongside the application metrics.
func NewPrometheus() *PrometheusRecorder {
	reg := prometheus.NewRegistry()

	p := &PrometheusRecorder{
		registry: reg,
		clicksAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_accepted_total",
			Help:      "Clicks credited to the leaderboard.",
		}, []string{"country"}),
		submissionsDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_denied_total",
			Help:      "Click submissions denied by the admission policy.",
		}, []string{"kind"}),
		submissionsInvalid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_invalid_total",
			Help:      "Click submissions rejected for malformed input.",
		}),
		submitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submit_duration_seconds",
			Help:      "Time spent handling a click submission.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		countriesTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "countries_tracked",
			Help:      "Countries present in the ledger.",
		}),
		geoLookups: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geo_lookup_duration_seconds",
			Help:      "Geolocation provider call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "status"}),
		geoCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geo_cache_total",
			Help:      "Geolocation cache lookups by result.",
		}, []string{"result"}),
		geoFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geo_fallback_total",
			Help:      "Lookups answered by the default location after every provider failed.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
		liveSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_subscribers",
			Help:      "Connected live leaderboard subscribers.",
		}),
		snapshotFlushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_flushes_total",
			Help:      "Ledger snapshot flushes by status.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.clicksAccepted,
		p.submissionsDenied,
		p.submissionsInvalid,
		p.submitDuration,
		p.countriesTracked,
		p.geoLookups,
		p.geoCache,
		p.geoFallbacks,
		p.rateLimited,
		p.liveSubscribers,
		p.snapshotFlushes,
	)

	return p
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Registry returns the underlying registry.
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

func (p *PrometheusRecorder) IncClicksAccepted(country string, clicks int64) {
	if clicks <= 0 {
		return
	}
	p.clicksAccepted.WithLabelValues(country).Add(float64(clicks))
}

func (p *PrometheusRecorder) IncSubmissionDenied(kind string) {
	p.submissionsDenied.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) IncSubmissionInvalid() {
	p.submissionsInvalid.Inc()
}

func (p *PrometheusRecorder) ObserveSubmitDuration(duration time.Duration) {
	p.submitDuration.Observe(duration.Seconds())
}

func (p *PrometheusRecorder) SetCountriesTracked(n int) {
	p.countriesTracked.Set(float64(n))
}

func (p *PrometheusRecorder) ObserveGeoLookup(provider, status string, duration time.Duration) {
	p.geoLookups.WithLabelValues(provider, status).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) IncGeoCacheHit() {
	p.geoCache.WithLabelValues("hit").Inc()
}

func (p *PrometheusRecorder) IncGeoCacheMiss() {
	p.geoCache.WithLabelValues("miss").Inc()
}

func (p *PrometheusRecorder) IncGeoFallback() {
	p.geoFallbacks.Inc()
}

func (p *PrometheusRecorder) IncRateLimited() {
	p.rateLimited.Inc()
}

func (p *PrometheusRecorder) SetLiveSubscribers(n int) {
	p.liveSubscribers.Set(float64(n))
}

func (p *PrometheusRecorder) IncSnapshotFlush(status string) {
	p.snapshotFlushes.WithLabelValues(status).Inc()
}
