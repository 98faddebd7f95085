// Package metrics provides Prometheus metrics for the expwatch service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultPartial = "partial"
	ResultOutage  = "outage"
)

// Manager manages all Prometheus metrics for the expwatch service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	refreshInterval  time.Duration
	registry         prometheus.Registerer

	// Collection runs
	collectorRuns         *prometheus.CounterVec
	collectorRunDuration  prometheus.Histogram
	collectorLastRunUnix  prometheus.Gauge
	collectorSnapshots    prometheus.Counter
	collectorFailures     *prometheus.CounterVec
	collectorLastAttempts prometheus.Gauge

	// Upstream API
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	resolverCache    *prometheus.CounterVec

	// Bounded stages
	stageInFlight *prometheus.GaugeVec
	stageLatency  *prometheus.HistogramVec

	// Ledger
	ledgerAppends       prometheus.Counter
	ledgerRows          prometheus.Gauge
	ledgerAppendLatency prometheus.Histogram
	ledgerReadLatency   prometheus.Histogram

	// Analytics
	analyticsQueries      *prometheus.CounterVec
	analyticsQueryLatency *prometheus.HistogramVec
	trackedEntities       prometheus.Gauge

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors by component
	errorRateByComponent *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "expwatch",
		subsystem:        "tracker",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		refreshInterval:  defaultRefreshInterval,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// RefreshInterval is how often periodic gauges should be sampled.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.collectorRuns = auto.NewCounterVec(
		m.counterOpts("collector_runs_total", "Collection runs by result (success, partial, outage, failure)"),
		[]string{"result"},
	)
	m.collectorRunDuration = auto.NewHistogram(
		m.histogramOpts("collector_run_duration_milliseconds", "Wall time of one collection run in milliseconds", m.histogramBuckets),
	)
	m.collectorLastRunUnix = auto.NewGauge(
		m.gaugeOpts("collector_last_run_unix", "Unix timestamp of the last completed collection run"),
	)
	m.collectorSnapshots = auto.NewCounter(
		m.counterOpts("collector_snapshots_total", "Snapshots produced by collection runs"),
	)
	m.collectorFailures = auto.NewCounterVec(
		m.counterOpts("collector_failures_total", "Per-entity failures by stage (resolve, fetch)"),
		[]string{"stage"},
	)
	m.collectorLastAttempts = auto.NewGauge(
		m.gaugeOpts("collector_last_attempted", "Roster size attempted by the last collection run"),
	)

	m.upstreamRequests = auto.NewCounterVec(
		m.counterOpts("upstream_requests_total", "Upstream API calls by operation and result"),
		[]string{"operation", "result"},
	)
	m.upstreamLatency = auto.NewHistogramVec(
		m.histogramOpts("upstream_latency_milliseconds", "Upstream API call latency in milliseconds", m.histogramBuckets),
		[]string{"operation"},
	)
	m.resolverCache = auto.NewCounterVec(
		m.counterOpts("resolver_cache_total", "Identifier cache lookups by result (hit, miss)"),
		[]string{"result"},
	)

	m.stageInFlight = auto.NewGaugeVec(
		m.gaugeOpts("stage_in_flight", "Tasks currently executing per stage"),
		[]string{"stage"},
	)
	m.stageLatency = auto.NewHistogramVec(
		m.histogramOpts("stage_task_latency_milliseconds", "Stage task latency in milliseconds", m.histogramBuckets),
		[]string{"stage"},
	)

	m.ledgerAppends = auto.NewCounter(
		m.counterOpts("ledger_appended_rows_total", "Snapshots appended to the ledger"),
	)
	m.ledgerRows = auto.NewGauge(
		m.gaugeOpts("ledger_rows", "Snapshots currently stored in the ledger"),
	)
	m.ledgerAppendLatency = auto.NewHistogram(
		m.histogramOpts("ledger_append_latency_milliseconds", "Ledger append latency in milliseconds", m.histogramBuckets),
	)
	m.ledgerReadLatency = auto.NewHistogram(
		m.histogramOpts("ledger_read_latency_milliseconds", "Ledger read latency in milliseconds", m.histogramBuckets),
	)

	m.analyticsQueries = auto.NewCounterVec(
		m.counterOpts("analytics_queries_total", "Analytics queries by kind and result"),
		[]string{"query", "result"},
	)
	m.analyticsQueryLatency = auto.NewHistogramVec(
		m.histogramOpts("analytics_query_latency_milliseconds", "Analytics query latency in milliseconds", m.histogramBuckets),
		[]string{"query"},
	)
	m.trackedEntities = auto.NewGauge(
		m.gaugeOpts("tracked_entities", "Entities present at the latest ledger timestamp"),
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Total number of errors by component"),
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(
		m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"),
	)
	m.systemGoroutineCount = auto.NewGauge(
		m.gaugeOpts("system_goroutine_count", "Number of goroutines"),
	)
	m.systemGCPauseTime = auto.NewHistogram(
		m.histogramOpts("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
			[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}),
	)
}

// Collector Metrics Functions.

// RecordCollectorRun records the outcome of one collection run.
func RecordCollectorRun(result string, attempted, snapshots int, took time.Duration) {
	globalManager.collectorRuns.WithLabelValues(result).Inc()
	globalManager.collectorRunDuration.Observe(ms(took))
	globalManager.collectorLastRunUnix.Set(float64(time.Now().Unix()))
	globalManager.collectorSnapshots.Add(float64(snapshots))
	globalManager.collectorLastAttempts.Set(float64(attempted))
}

// RecordCollectorFailure increments the per-entity failure counter for stage.
func RecordCollectorFailure(stage string) {
	globalManager.collectorFailures.WithLabelValues(stage).Inc()
}

// Upstream Metrics Functions.

// RecordUpstreamRequest records one upstream call.
func RecordUpstreamRequest(operation, result string, took time.Duration) {
	globalManager.upstreamRequests.WithLabelValues(operation, result).Inc()
	globalManager.upstreamLatency.WithLabelValues(operation).Observe(ms(took))
}

// RecordResolverCache records an identifier cache hit or miss.
func RecordResolverCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	globalManager.resolverCache.WithLabelValues(result).Inc()
}

// Stage Metrics Functions.

// AddStageInFlight adjusts the in-flight gauge of stage by delta.
func AddStageInFlight(stage string, delta int) {
	globalManager.stageInFlight.WithLabelValues(stage).Add(float64(delta))
}

// RecordStageLatency records how long one stage task took.
func RecordStageLatency(stage string, took time.Duration) {
	globalManager.stageLatency.WithLabelValues(stage).Observe(ms(took))
}

// Ledger Metrics Functions.

// RecordLedgerAppend records an append of n rows.
func RecordLedgerAppend(n int, took time.Duration) {
	globalManager.ledgerAppends.Add(float64(n))
	globalManager.ledgerAppendLatency.Observe(ms(took))
}

// UpdateLedgerRows sets the number of stored snapshots.
func UpdateLedgerRows(n int) {
	globalManager.ledgerRows.Set(float64(n))
}

// RecordLedgerRead records one ledger read.
func RecordLedgerRead(took time.Duration) {
	globalManager.ledgerReadLatency.Observe(ms(took))
}

// Analytics Metrics Functions.

// RecordAnalyticsQuery records one analytics query.
func RecordAnalyticsQuery(query, result string, took time.Duration) {
	globalManager.analyticsQueries.WithLabelValues(query, result).Inc()
	globalManager.analyticsQueryLatency.WithLabelValues(query).Observe(ms(took))
}

// UpdateTrackedEntities sets the size of the latest ranking.
func UpdateTrackedEntities(n int) {
	globalManager.trackedEntities.Set(float64(n))
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Default returns the global manager.
func Default() *Manager {
	return globalManager
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
