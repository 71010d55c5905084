package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	ClicksAccepted           uint64
	ClicksByCountry          map[string]uint64
	SubmissionsDenied        map[string]uint64
	SubmissionsInvalid       uint64
	SubmitDurationCount      uint64
	SubmitDurationTotalNs    int64
	CountriesTracked         int64
	GeoLookups               map[string]uint64 // key: provider|status
	GeoLookupDurationTotalNs int64
	GeoCacheHits             uint64
	GeoCacheMisses           uint64
	GeoFallbacks             uint64
	RateLimited              uint64
	LiveSubscribers          int64
	SnapshotFlushes          map[string]uint64
}

// InMemoryRecorder stores metrics in memory for tests and the text exporter.
type InMemoryRecorder struct {
	clicksAccepted           uint64
	submissionsInvalid       uint64
	submitDurationCount      uint64
	submitDurationTotalNs    int64
	countriesTracked         int64
	geoLookupDurationTotalNs int64
	geoCacheHits             uint64
	geoCacheMisses           uint64
	geoFallbacks             uint64
	rateLimited              uint64
	liveSubscribers          int64

	mu              sync.Mutex
	clicksByCountry map[string]uint64
	denied          map[string]uint64
	geoLookups      map[string]uint64
	snapshotFlushes map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		clicksByCountry: make(map[string]uint64),
		denied:          make(map[string]uint64),
		geoLookups:      make(map[string]uint64),
		snapshotFlushes: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	byCountry := copyCounts(m.clicksByCountry)
	denied := copyCounts(m.denied)
	lookups := copyCounts(m.geoLookups)
	flushes := copyCounts(m.snapshotFlushes)
	m.mu.Unlock()

	return Snapshot{
		ClicksAccepted:           atomic.LoadUint64(&m.clicksAccepted),
		ClicksByCountry:          byCountry,
		SubmissionsDenied:        denied,
		SubmissionsInvalid:       atomic.LoadUint64(&m.submissionsInvalid),
		SubmitDurationCount:      atomic.LoadUint64(&m.submitDurationCount),
		SubmitDurationTotalNs:    atomic.LoadInt64(&m.submitDurationTotalNs),
		CountriesTracked:         atomic.LoadInt64(&m.countriesTracked),
		GeoLookups:               lookups,
		GeoLookupDurationTotalNs: atomic.LoadInt64(&m.geoLookupDurationTotalNs),
		GeoCacheHits:             atomic.LoadUint64(&m.geoCacheHits),
		GeoCacheMisses:           atomic.LoadUint64(&m.geoCacheMisses),
		GeoFallbacks:             atomic.LoadUint64(&m.geoFallbacks),
		RateLimited:              atomic.LoadUint64(&m.rateLimited),
		LiveSubscribers:          atomic.LoadInt64(&m.liveSubscribers),
		SnapshotFlushes:          flushes,
	}
}

// IncClicksAccepted adds accepted clicks for a country.
func (m *InMemoryRecorder) IncClicksAccepted(country string, clicks int64) {
	if clicks <= 0 {
		return
	}
	atomic.AddUint64(&m.clicksAccepted, uint64(clicks))
	m.mu.Lock()
	m.clicksByCountry[country] += uint64(clicks)
	m.mu.Unlock()
}

// IncSubmissionDenied counts a denied submission by kind.
func (m *InMemoryRecorder) IncSubmissionDenied(kind string) {
	m.mu.Lock()
	m.denied[kind]++
	m.mu.Unlock()
}

// IncSubmissionInvalid counts a rejected payload.
func (m *InMemoryRecorder) IncSubmissionInvalid() {
	atomic.AddUint64(&m.submissionsInvalid, 1)
}

// ObserveSubmitDuration records submission handling time.
func (m *InMemoryRecorder) ObserveSubmitDuration(duration time.Duration) {
	atomic.AddUint64(&m.submitDurationCount, 1)
	atomic.AddInt64(&m.submitDurationTotalNs, duration.Nanoseconds())
}

// SetCountriesTracked sets the tracked country gauge.
func (m *InMemoryRecorder) SetCountriesTracked(n int) {
	atomic.StoreInt64(&m.countriesTracked, int64(n))
}

// ObserveGeoLookup records one provider call.
func (m *InMemoryRecorder) ObserveGeoLookup(provider, status string, duration time.Duration) {
	atomic.AddInt64(&m.geoLookupDurationTotalNs, duration.Nanoseconds())
	m.mu.Lock()
	m.geoLookups[provider+"|"+status]++
	m.mu.Unlock()
}

// IncGeoCacheHit increments the geolocation cache hit counter.
func (m *InMemoryRecorder) IncGeoCacheHit() {
	atomic.AddUint64(&m.geoCacheHits, 1)
}

// IncGeoCacheMiss increments the geolocation cache miss counter.
func (m *InMemoryRecorder) IncGeoCacheMiss() {
	atomic.AddUint64(&m.geoCacheMisses, 1)
}

// IncGeoFallback counts lookups answered by the default location.
func (m *InMemoryRecorder) IncGeoFallback() {
	atomic.AddUint64(&m.geoFallbacks, 1)
}

// IncRateLimited counts requests rejected by the rate limiter.
func (m *InMemoryRecorder) IncRateLimited() {
	atomic.AddUint64(&m.rateLimited, 1)
}

// SetLiveSubscribers sets the websocket subscriber gauge.
func (m *InMemoryRecorder) SetLiveSubscribers(n int) {
	atomic.StoreInt64(&m.liveSubscribers, int64(n))
}

// IncSnapshotFlush counts snapshot flushes by status.
func (m *InMemoryRecorder) IncSnapshotFlush(status string) {
	m.mu.Lock()
	m.snapshotFlushes[status]++
	m.mu.Unlock()
}

func copyCounts(src map[string]uint64) map[string]uint64 {
	dst := make(map[string]uint64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
