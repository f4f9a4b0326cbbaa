// Package metrics provides Prometheus metrics for the pulse aggregation service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns every Prometheus collector the service registers.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         *prometheus.Registry

	// Ingestion
	eventsIngested  prometheus.Counter
	eventsDuplicate prometheus.Counter
	ingestErrors    prometheus.Counter

	// Batch pass
	passesTotal       prometheus.Counter
	passDuration      prometheus.Histogram
	passLastUnix      prometheus.Gauge
	eventsProcessed   prometheus.Counter
	eventsSkipped     prometheus.Counter
	eventFailures     prometheus.Counter
	unprocessedEvents prometheus.Gauge

	// Derived state
	contributionsApplied  prometheus.Counter
	contributionsReplayed prometheus.Counter
	streakResets          prometheus.Counter
	storeTxnRetries       prometheus.Counter
	storeTxnConflicts     prometheus.Counter

	// Insights
	insightsGenerated *prometheus.CounterVec
	detectorErrors    prometheus.Counter
	sweepDuration     prometheus.Histogram
	neglectedSkills   prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System
	systemMemoryBytes prometheus.Gauge
	systemGoroutines  prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Init creates and registers the global metrics manager.
func Init(opts ...Option) {
	m := &Manager{
		namespace:        "pulse",
		subsystem:        "",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		registry:         prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	factory := promauto.With(m.registry)

	m.eventsIngested = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "events_ingested_total",
		Help: "Events accepted by the ingestion endpoint.",
	})
	m.eventsDuplicate = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "events_duplicate_total",
		Help: "Events rejected as duplicates by idempotency checks.",
	})
	m.ingestErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "ingest_errors_total",
		Help: "Failures while appending events to the store.",
	})

	m.passesTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "batch_passes_total",
		Help: "Completed batch passes.",
	})
	m.passDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "batch_pass_duration_seconds",
		Help:    "Wall time of a batch pass.",
		Buckets: m.histogramBuckets,
	})
	m.passLastUnix = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "batch_pass_last_unix",
		Help: "Unix time of the last completed batch pass.",
	})
	m.eventsProcessed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "events_processed_total",
		Help: "Events fully processed and marked as such.",
	})
	m.eventsSkipped = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "events_skipped_total",
		Help: "Events marked processed with no derived effect (unknown type or empty payload).",
	})
	m.eventFailures = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "event_failures_total",
		Help: "Events left unprocessed for retry after a failure.",
	})
	m.unprocessedEvents = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "unprocessed_events",
		Help: "Events currently awaiting processing.",
	})

	m.contributionsApplied = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "contributions_applied_total",
		Help: "Skill contributions applied to aggregates and mastery.",
	})
	m.contributionsReplayed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "contributions_replayed_total",
		Help: "Skill contributions skipped because they were already applied.",
	})
	m.streakResets = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "streak_resets_total",
		Help: "Streaks reset to one after a gap in activity.",
	})
	m.storeTxnRetries = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "store_txn_retries_total",
		Help: "Optimistic transaction retries in the store.",
	})
	m.storeTxnConflicts = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "store_txn_conflicts_total",
		Help: "Transactions abandoned after exhausting retries.",
	})

	m.insightsGenerated = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "insights_generated_total",
		Help: "Insights appended, labeled by key and severity.",
	}, []string{"key", "severity"})
	m.detectorErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "detector_errors_total",
		Help: "Insight detector failures (isolated, never fatal to an event).",
	})
	m.sweepDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "neglect_sweep_duration_seconds",
		Help:    "Wall time of a neglected-skill sweep.",
		Buckets: m.histogramBuckets,
	})
	m.neglectedSkills = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "neglected_skills",
		Help: "Skill mastery records flagged neglected by the last sweep.",
	})

	m.httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_requests_total",
		Help: "HTTP requests by endpoint, method and status.",
	}, []string{"endpoint", "method", "status"})
	m.httpRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by endpoint and method.",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method"})

	m.systemMemoryBytes = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "system_memory_bytes",
		Help: "Heap bytes currently allocated.",
	})
	m.systemGoroutines = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "system_goroutines",
		Help: "Goroutines currently running.",
	})

	globalManager = m
}

// manager returns the global manager, initializing a default one when
// metrics were never explicitly set up (tests mostly).
func manager() *Manager {
	if globalManager == nil {
		Init()
	}
	return globalManager
}

// GetRegistry exposes the registry for serving /healthz.
func GetRegistry() *prometheus.Registry {
	return manager().registry
}

// Handler returns an http.Handler serving the metrics registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(manager().registry, promhttp.HandlerOpts{})
}

// Ingestion helpers.

func RecordEventIngested() {
	if m := manager(); m.enabled {
		m.eventsIngested.Inc()
	}
}

func RecordEventDuplicate() {
	if m := manager(); m.enabled {
		m.eventsDuplicate.Inc()
	}
}

func RecordIngestError() {
	if m := manager(); m.enabled {
		m.ingestErrors.Inc()
	}
}

// Batch pass helpers.

func RecordPass(durationSeconds float64) {
	m := manager()
	if !m.enabled {
		return
	}
	m.passesTotal.Inc()
	m.passDuration.Observe(durationSeconds)
}

func UpdatePassLastUnix(ts float64) {
	if m := manager(); m.enabled {
		m.passLastUnix.Set(ts)
	}
}

func RecordEventProcessed() {
	if m := manager(); m.enabled {
		m.eventsProcessed.Inc()
	}
}

func RecordEventSkipped() {
	if m := manager(); m.enabled {
		m.eventsSkipped.Inc()
	}
}

func RecordEventFailure() {
	if m := manager(); m.enabled {
		m.eventFailures.Inc()
	}
}

func UpdateUnprocessedEvents(n int) {
	if m := manager(); m.enabled {
		m.unprocessedEvents.Set(float64(n))
	}
}

// Derived-state helpers.

func RecordContributionApplied() {
	if m := manager(); m.enabled {
		m.contributionsApplied.Inc()
	}
}

func RecordContributionReplayed() {
	if m := manager(); m.enabled {
		m.contributionsReplayed.Inc()
	}
}

func RecordStreakReset() {
	if m := manager(); m.enabled {
		m.streakResets.Inc()
	}
}

func RecordStoreTxnRetry() {
	if m := manager(); m.enabled {
		m.storeTxnRetries.Inc()
	}
}

func RecordStoreTxnConflict() {
	if m := manager(); m.enabled {
		m.storeTxnConflicts.Inc()
	}
}

// Insight helpers.

func RecordInsight(key, severity string) {
	m := manager()
	if m.enabled {
		m.insightsGenerated.WithLabelValues(key, severity).Inc()
	}
}

func RecordDetectorError() {
	if m := manager(); m.enabled {
		m.detectorErrors.Inc()
	}
}

func RecordSweep(durationSeconds float64, neglected int) {
	m := manager()
	if !m.enabled {
		return
	}
	m.sweepDuration.Observe(durationSeconds)
	m.neglectedSkills.Set(float64(neglected))
}

// HTTP helpers.

func RecordHTTPRequest(endpoint, method, status string) {
	m := manager()
	if m.enabled {
		m.httpRequests.WithLabelValues(endpoint, method, status).Inc()
	}
}

func RecordHTTPRequestDuration(endpoint, method string, seconds float64) {
	m := manager()
	if m.enabled {
		m.httpRequestDuration.WithLabelValues(endpoint, method).Observe(seconds)
	}
}

// System helpers.

func UpdateSystemMemoryUsage(bytes uint64) {
	if m := manager(); m.enabled {
		m.systemMemoryBytes.Set(float64(bytes))
	}
}

func UpdateSystemGoroutineCount(n int) {
	if m := manager(); m.enabled {
		m.systemGoroutines.Set(float64(n))
	}
}
