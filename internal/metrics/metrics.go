package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forma_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forma_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "forma_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forma_db_queries_total",
			Help: "Total number of catalog database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forma_db_query_duration_seconds",
			Help:    "Catalog database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "forma_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Scan metrics
var (
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forma_scans_total",
			Help: "Total number of folder scans by outcome",
		},
		[]string{"outcome"}, // "completed", "cancelled", "error"
	)

	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "forma_scan_duration_seconds",
			Help:    "Duration of folder scans in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
	)

	ScanAssetsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "forma_scan_assets_created_total",
			Help: "Total number of assets created during scans",
		},
	)

	ScanFilesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forma_scan_files_skipped_total",
			Help: "Total number of files skipped during scans",
		},
		[]string{"reason"}, // "unsupported", "duplicate", "error"
	)

	ScansActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "forma_scans_active",
			Help: "Number of scans currently in progress",
		},
	)
)

// Walker metrics
var (
	WalkerDirectoriesRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "forma_walker_directories_read_total",
			Help: "Total number of directories enumerated by the walker",
		},
	)

	WalkerEntriesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forma_walker_entries_skipped_total",
			Help: "Total number of entries skipped by the walker",
		},
		[]string{"reason"}, // "hidden", "unreadable", "depth"
	)
)

// Watcher metrics
var (
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forma_watcher_events_total",
			Help: "Total number of live filesystem events processed",
		},
		[]string{"type"}, // "create", "write", "remove", "rename", "chmod", "unknown"
	)

	WatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "forma_watcher_errors_total",
			Help: "Total number of live watcher errors",
		},
	)

	WatchersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "forma_watchers_active",
			Help: "Number of active folder watch subscriptions",
		},
	)
)

// Thumbnail metrics
var (
	ThumbnailGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forma_thumbnail_generations_total",
			Help: "Total number of thumbnail generation attempts",
		},
		[]string{"status"}, // "rendered", "placeholder", "error"
	)

	ThumbnailGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "forma_thumbnail_generation_duration_seconds",
			Help:    "Thumbnail generation duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 30},
		},
	)
)

// Event bus metrics
var (
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forma_events_published_total",
			Help: "Total number of events published to the progress channel",
		},
		[]string{"type"},
	)

	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "forma_events_dropped_total",
			Help: "Total number of events dropped due to slow subscribers",
		},
	)

	EventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "forma_event_subscribers",
			Help: "Number of active progress channel subscribers",
		},
	)
)
