package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncClicksAccepted is a no-op.
func (n *NoopRecorder) IncClicksAccepted(country string, clicks int64) {}

// IncSubmissionDenied is a no-op.
func (n *NoopRecorder) IncSubmissionDenied(kind string) {}

// IncSubmissionInvalid is a no-op.
func (n *NoopRecorder) IncSubmissionInvalid() {}

// ObserveSubmitDuration is a no-op.
func (n *NoopRecorder) ObserveSubmitDuration(duration time.Duration) {}

// SetCountriesTracked is a no-op.
func (n *NoopRecorder) SetCountriesTracked(count int) {}

// ObserveGeoLookup is a no-op.
func (n *NoopRecorder) ObserveGeoLookup(provider, status string, duration time.Duration) {}

// IncGeoCacheHit is a no-op.
func (n *NoopRecorder) IncGeoCacheHit() {}

// IncGeoCacheMiss is a no-op.
func (n *NoopRecorder) IncGeoCacheMiss() {}

// IncGeoFallback is a no-op.
func (n *NoopRecorder) IncGeoFallback() {}

// IncRateLimited is a no-op.
func (n *NoopRecorder) IncRateLimited() {}

// SetLiveSubscribers is a no-op.
func (n *NoopRecorder) SetLiveSubscribers(count int) {}

// IncSnapshotFlush is a no-op.
func (n *NoopRecorder) IncSnapshotFlush(status string) {}
