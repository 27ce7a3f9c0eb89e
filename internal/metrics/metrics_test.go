package metrics

import "testing"

// TestInitializeMetrics verifies that pre-population does not panic and can
// be called more than once (label lookups are idempotent).
func TestInitializeMetrics(t *testing.T) {
	InitializeMetrics()
	InitializeMetrics()
}

func TestMetricUpdatesDoNotPanic(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/api/assets", "200").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/api/assets").Observe(0.01)
	HTTPRequestsInFlight.Inc()
	HTTPRequestsInFlight.Dec()

	DBQueryTotal.WithLabelValues("create_asset", "success").Inc()
	DBQueryDuration.WithLabelValues("create_asset").Observe(0.002)

	ScansTotal.WithLabelValues("completed").Inc()
	ScanDuration.Observe(1.5)
	ScanAssetsCreated.Add(3)
	ScansActive.Set(1)
	ScansActive.Set(0)

	WalkerDirectoriesRead.Inc()
	WalkerEntriesSkipped.WithLabelValues("hidden").Inc()

	WatcherEventsTotal.WithLabelValues("create").Inc()
	WatchersActive.Set(2)

	ThumbnailGenerationsTotal.WithLabelValues("placeholder").Inc()
	ThumbnailGenerationDuration.Observe(0.2)

	EventsPublished.WithLabelValues("scan_progress").Inc()
	EventsDropped.Inc()
	EventSubscribers.Set(1)
}
