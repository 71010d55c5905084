// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus or keep them in memory.
type Recorder interface {
	// Click submission metrics
	IncClicksAccepted(country string, clicks int64)
	IncSubmissionDenied(kind string) // kind: vpn, permanent, temporary, mode, unknown_country
	IncSubmissionInvalid()
	ObserveSubmitDuration(duration time.Duration)
	SetCountriesTracked(n int)

	// Geolocation metrics
	ObserveGeoLookup(provider, status string, duration time.Duration) // status: "success" or "error"
	IncGeoCacheHit()
	IncGeoCacheMiss()
	IncGeoFallback()

	// Edge metrics
	IncRateLimited()
	SetLiveSubscribers(n int)
	IncSnapshotFlush(status string) // status: "success" or "failed"
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
