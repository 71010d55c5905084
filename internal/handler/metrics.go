package handler

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/catclicker/catclicker/internal/metrics"
)

// MetricsHandler exposes metrics. A Prometheus exporter is served as is;
// otherwise the in-memory snapshot is rendered in exposition format.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
	exporter    http.Handler
}

// NewMetricsHandler creates a new MetricsHandler. Either argument may be nil.
func NewMetricsHandler(snapshotter metrics.Snapshotter, exporter http.Handler) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter, exporter: exporter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.exporter != nil {
		h.exporter.ServeHTTP(w, r)
		return
	}
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	for _, code := range sortedKeys(snap.ClicksByCountry) {
		writeMetric(w, "catclicker_clicks_accepted_total{country=%q} %d\n", code, snap.ClicksByCountry[code])
	}
	for _, kind := range sortedKeys(snap.SubmissionsDenied) {
		writeMetric(w, "catclicker_submissions_denied_total{kind=%q} %d\n", kind, snap.SubmissionsDenied[kind])
	}
	writeMetric(w, "catclicker_submissions_invalid_total %d\n", snap.SubmissionsInvalid)
	writeMetric(w, "catclicker_submit_duration_seconds_count %d\n", snap.SubmitDurationCount)
	writeMetric(w, "catclicker_submit_duration_seconds_sum %.6f\n", float64(snap.SubmitDurationTotalNs)/1e9)
	writeMetric(w, "catclicker_countries_tracked %d\n", snap.CountriesTracked)

	for _, key := range sortedKeys(snap.GeoLookups) {
		provider, status, _ := strings.Cut(key, "|")
		writeMetric(w, "catclicker_geo_lookup_duration_seconds_count{provider=%q,status=%q} %d\n", provider, status, snap.GeoLookups[key])
	}
	writeMetric(w, "catclicker_geo_cache_total{result=\"hit\"} %d\n", snap.GeoCacheHits)
	writeMetric(w, "catclicker_geo_cache_total{result=\"miss\"} %d\n", snap.GeoCacheMisses)
	writeMetric(w, "catclicker_geo_fallback_total %d\n", snap.GeoFallbacks)

	writeMetric(w, "catclicker_rate_limited_total %d\n", snap.RateLimited)
	writeMetric(w, "catclicker_live_subscribers %d\n", snap.LiveSubscribers)
	for _, status := range sortedKeys(snap.SnapshotFlushes) {
		writeMetric(w, "catclicker_snapshot_flushes_total{status=%q} %d\n", status, snap.SnapshotFlushes[status])
	}
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
