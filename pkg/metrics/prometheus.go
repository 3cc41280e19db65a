// Package metrics provides Prometheus metrics for the rankboard service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Update outcomes recorded by RecordScoreUpdate.
const (
	OutcomeApplied  = "applied"
	OutcomeReplayed = "replayed"
	OutcomeRejected = "rejected"
)

// Rebuild skip reasons recorded by RecordRebuildSkipped.
const (
	SkipBusy  = "busy"
	SkipClean = "clean"
)

// Query kinds recorded by RecordQueryLatency.
const (
	QueryRange        = "range"
	QueryNeighborhood = "neighborhood"
	QueryLookup       = "lookup"
)

var defaultLatencyBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50, 100, 500}

var rebuildBuckets = []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500}

// Manager owns every collector exported by the service.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	registry       prometheus.Registerer

	// Score store
	scoreUpdates       *prometheus.CounterVec
	scoreUpdateLatency prometheus.Histogram
	customersTracked   prometheus.Gauge

	// Snapshot builder
	rankedCustomers    prometheus.Gauge
	snapshotGeneration prometheus.Gauge
	snapshotLastUnix   prometheus.Gauge
	rebuilds           prometheus.Counter
	rebuildsSkipped    *prometheus.CounterVec
	rebuildDuration    prometheus.Histogram

	// Query engine
	queryLatency *prometheus.HistogramVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// Bulk ingest
	queueSize       prometheus.Gauge
	queueCapacity   prometheus.Gauge
	queueEnqueued   prometheus.Counter
	queueRejected   *prometheus.CounterVec
	workerCount     prometheus.Gauge
	workerProcessed prometheus.Counter
	workerErrors    prometheus.Counter
	workerLatency   prometheus.Histogram

	// Idempotency
	idempotencyEntries prometheus.Gauge

	// Runtime
	systemMemoryBytes prometheus.Gauge
	systemGoroutines  prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton manager backing the package helpers

// customRegistry keeps Go runtime collectors out of /healthz.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // registry shared with the HTTP layer

func init() { //nolint:gochecknoinits // collectors must exist before any helper is called
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "rankboard",
		subsystem:      "leaderboard",
		latencyBuckets: defaultLatencyBuckets,
		registry:       prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place to declare every collector
	auto := promauto.With(m.registry)

	m.scoreUpdates = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "score_updates_total",
		Help:      "Score updates by outcome (applied, replayed, rejected)",
	}, []string{"outcome"})
	m.scoreUpdateLatency = m.histogram("score_update_latency_milliseconds",
		"Latency of a single score delta application", m.latencyBuckets)
	m.customersTracked = m.gauge("customers_tracked", "Customers known to the score store, ranked or not")

	m.rankedCustomers = m.gauge("ranked_customers", "Customers in the current ranked snapshot")
	m.snapshotGeneration = m.gauge("snapshot_generation", "Generation number of the published snapshot")
	m.snapshotLastUnix = m.gauge("snapshot_last_unix", "Unix time of the last snapshot publish")
	m.rebuilds = m.counter("snapshot_rebuilds_total", "Snapshots built and published")
	m.rebuildsSkipped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshot_rebuilds_skipped_total",
		Help:      "Rebuild ticks skipped, by reason (busy, clean)",
	}, []string{"reason"})
	m.rebuildDuration = m.histogram("snapshot_rebuild_duration_milliseconds",
		"Time to scan, sort and publish a snapshot", rebuildBuckets)

	m.queryLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "query_latency_milliseconds",
		Help:      "Read query latency by kind",
		Buckets:   m.latencyBuckets,
	}, []string{"kind"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "HTTP requests by endpoint, method and status code",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_total",
		Help:      "Errors by component and type",
	}, []string{"component", "type"})

	m.queueSize = m.gauge("queue_size", "Score updates waiting in the ingest queue")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the ingest queue")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Score updates accepted into the ingest queue")
	m.queueRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_rejected_total",
		Help:      "Score updates refused by the ingest queue, by reason",
	}, []string{"reason"})
	m.workerCount = m.gauge("worker_count", "Ingest workers running")
	m.workerProcessed = m.counter("worker_processed_total", "Queued score updates applied by workers")
	m.workerErrors = m.counter("worker_errors_total", "Queued score updates that failed to apply")
	m.workerLatency = m.histogram("worker_processing_latency_milliseconds",
		"Time from enqueue to application of a queued update", prometheus.DefBuckets)

	m.idempotencyEntries = m.gauge("idempotency_entries", "Idempotency keys currently remembered")

	m.systemMemoryBytes = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutines = m.gauge("system_goroutines", "Number of goroutines")
}

// RecordScoreUpdate counts a score update with the given outcome.
func RecordScoreUpdate(outcome string) {
	globalManager.scoreUpdates.WithLabelValues(outcome).Inc()
}

// RecordScoreUpdateLatency observes the latency of one ApplyDelta call.
func RecordScoreUpdateLatency(ms float64) {
	globalManager.scoreUpdateLatency.Observe(ms)
}

// UpdateCustomersTracked sets the number of known customers.
func UpdateCustomersTracked(n int) {
	globalManager.customersTracked.Set(float64(n))
}

// RecordRebuild records a published snapshot.
func RecordRebuild(durationMs float64, ranked int, generation uint64, unix int64) {
	globalManager.rebuilds.Inc()
	globalManager.rebuildDuration.Observe(durationMs)
	globalManager.rankedCustomers.Set(float64(ranked))
	globalManager.snapshotGeneration.Set(float64(generation))
	globalManager.snapshotLastUnix.Set(float64(unix))
}

// RecordRebuildSkipped counts a rebuild that did not run.
func RecordRebuildSkipped(reason string) {
	globalManager.rebuildsSkipped.WithLabelValues(reason).Inc()
}

// RecordQueryLatency observes a read query of the given kind.
func RecordQueryLatency(kind string, ms float64) {
	globalManager.queryLatency.WithLabelValues(kind).Observe(ms)
}

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes an HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(ms)
}

// RecordError counts an error for component.
func RecordError(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateQueueSize sets the ingest queue depth.
func UpdateQueueSize(n int) {
	globalManager.queueSize.Set(float64(n))
}

// UpdateQueueCapacity sets the ingest queue capacity.
func UpdateQueueCapacity(n int) {
	globalManager.queueCapacity.Set(float64(n))
}

// RecordQueueEnqueue counts an accepted queued update.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueRejected counts a refused queued update.
func RecordQueueRejected(reason string) {
	globalManager.queueRejected.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the number of running ingest workers.
func UpdateWorkerCount(n int) {
	globalManager.workerCount.Set(float64(n))
}

// RecordWorkerProcessed counts a queued update applied by a worker.
func RecordWorkerProcessed(latencyMs float64) {
	globalManager.workerProcessed.Inc()
	globalManager.workerLatency.Observe(latencyMs)
}

// RecordWorkerError counts a queued update that failed.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// UpdateIdempotencyEntries sets the idempotency cache size.
func UpdateIdempotencyEntries(n int64) {
	globalManager.idempotencyEntries.Set(float64(n))
}

// UpdateSystemMemoryUsage sets the heap allocation gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryBytes.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(n int) {
	globalManager.systemGoroutines.Set(float64(n))
}

// GetRegistry returns the registry served on /healthz.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
