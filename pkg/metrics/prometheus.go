// Package metrics provides Prometheus metrics for the cohort experiment service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the cohort service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	registry         prometheus.Registerer

	// Experiment Metrics - assignment and classification activity
	assignmentsTotal   *prometheus.CounterVec
	assignmentsForced  *prometheus.CounterVec
	assignmentsCleared *prometheus.CounterVec
	trafficClassified  *prometheus.CounterVec

	// Event Pipeline Metrics
	eventsTracked       *prometheus.CounterVec
	eventsDelivered     *prometheus.CounterVec
	eventsDropped       *prometheus.CounterVec
	sinkDeliveryLatency prometheus.Histogram
	sinkErrors          *prometheus.CounterVec

	// Engagement Metrics
	scrollThresholds *prometheus.CounterVec
	bounces          prometheus.Counter

	// Session Metrics
	sessionsStarted prometheus.Counter
	sessionsEnded   *prometheus.CounterVec
	activeSessions  prometheus.Gauge

	// Store Metrics
	storeEntries  prometheus.Gauge
	storeExpiries prometheus.Counter

	// Queue Metrics
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	queueEnqueues prometheus.Counter
	queueDequeues prometheus.Counter

	// Worker Metrics
	workerCount prometheus.Gauge

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Enhanced Error Metrics - detailed error tracking
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

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
		namespace:        "cohort",
		subsystem:        "experiment",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	// Experiment Metrics
	m.assignmentsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "assignments_total",
		Help:      "Total number of fresh variant assignments by experiment and variant",
	}, []string{"experiment", "variant"})

	m.assignmentsForced = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "assignments_forced_total",
		Help:      "Total number of QA-forced variant assignments",
	}, []string{"experiment"})

	m.assignmentsCleared = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "assignments_cleared_total",
		Help:      "Total number of cleared variant assignments",
	}, []string{"experiment"})

	m.trafficClassified = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "traffic_classified_total",
		Help:      "Total number of fresh traffic classifications by source",
	}, []string{"source"})

	// Event Pipeline Metrics
	m.eventsTracked = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_tracked_total",
		Help:      "Total number of analytics events submitted to the tracker",
	}, []string{"event"})

	m.eventsDelivered = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_delivered_total",
		Help:      "Total number of analytics events delivered to the sink",
	}, []string{"event"})

	m.eventsDropped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_dropped_total",
		Help:      "Total number of analytics events dropped before delivery",
	}, []string{"reason"})

	m.sinkDeliveryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sink_delivery_latency_milliseconds",
		Help:      "Histogram of sink delivery latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.sinkErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sink_errors_total",
		Help:      "Total number of sink delivery failures by sink",
	}, []string{"sink"})

	// Engagement Metrics
	m.scrollThresholds = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scroll_thresholds_total",
		Help:      "Total number of scroll depth threshold crossings by threshold",
	}, []string{"threshold"})

	m.bounces = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "bounces_total",
		Help:      "Total number of bounced sessions",
	})

	// Session Metrics
	m.sessionsStarted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_started_total",
		Help:      "Total number of page sessions started",
	})

	m.sessionsEnded = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_ended_total",
		Help:      "Total number of page sessions ended by reason",
	}, []string{"reason"})

	m.activeSessions = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_active",
		Help:      "Current number of live page sessions",
	})

	// Store Metrics
	m.storeEntries = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_entries",
		Help:      "Current number of visitor state entries",
	})

	m.storeExpiries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_expiries_total",
		Help:      "Total number of visitor state entries reaped after TTL",
	})

	// Queue Metrics
	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Current number of queued analytics events",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Configured capacity of the analytics event queue",
	})

	m.queueEnqueues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueues_total",
		Help:      "Total number of events enqueued",
	})

	m.queueDequeues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_dequeues_total",
		Help:      "Total number of events dequeued",
	})

	// Worker Metrics
	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_count",
		Help:      "Number of delivery workers",
	})

	// HTTP Performance Metrics
	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "Histogram of HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status"})

	// Enhanced Error Metrics
	m.errorRateByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_by_component_total",
		Help:      "Total number of errors by component and type",
	}, []string{"component", "type"})

	m.errorRateByType = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_by_type_total",
		Help:      "Total number of errors by type and severity",
	}, []string{"type", "severity"})

	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_by_endpoint_total",
		Help:      "Total number of errors by endpoint, method and type",
	}, []string{"endpoint", "method", "type"})

	m.errorLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "error_latency_milliseconds",
		Help:      "Histogram of latency for failed operations in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"component", "type"})

	// System Performance Metrics
	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_bytes",
		Help:      "Current allocated memory in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutines",
		Help:      "Current number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_milliseconds",
		Help:      "Histogram of GC pause time in milliseconds",
		Buckets:   m.histogramBuckets,
	})
}

// ---------------------------------------------------------------------------
// Experiment metrics

// RecordAssignment increments the fresh-assignment counter.
func RecordAssignment(experiment, variant string) {
	globalManager.assignmentsTotal.WithLabelValues(experiment, variant).Inc()
}

// RecordAssignmentForced increments the forced-assignment counter.
func RecordAssignmentForced(experiment string) {
	globalManager.assignmentsForced.WithLabelValues(experiment).Inc()
}

// RecordAssignmentCleared increments the cleared-assignment counter.
func RecordAssignmentCleared(experiment string) {
	globalManager.assignmentsCleared.WithLabelValues(experiment).Inc()
}

// RecordTrafficClassified increments the classification counter for a source.
func RecordTrafficClassified(source string) {
	globalManager.trafficClassified.WithLabelValues(source).Inc()
}

// ---------------------------------------------------------------------------
// Event pipeline metrics

// RecordEventTracked increments the tracked counter for an event name.
func RecordEventTracked(event string) {
	globalManager.eventsTracked.WithLabelValues(event).Inc()
}

// RecordEventDelivered increments the delivered counter for an event name.
func RecordEventDelivered(event string) {
	globalManager.eventsDelivered.WithLabelValues(event).Inc()
}

// RecordEventDropped increments the dropped counter for a reason.
func RecordEventDropped(reason string) {
	globalManager.eventsDropped.WithLabelValues(reason).Inc()
}

// RecordSinkDeliveryLatency records one sink delivery latency sample.
func RecordSinkDeliveryLatency(latencyMs float64) {
	globalManager.sinkDeliveryLatency.Observe(latencyMs)
}

// RecordSinkError increments the sink error counter.
func RecordSinkError(sink string) {
	globalManager.sinkErrors.WithLabelValues(sink).Inc()
}

// ---------------------------------------------------------------------------
// Engagement metrics

// RecordScrollThreshold increments the crossing counter for a threshold.
func RecordScrollThreshold(threshold int) {
	globalManager.scrollThresholds.WithLabelValues(strconv.Itoa(threshold)).Inc()
}

// RecordBounce increments the bounce counter.
func RecordBounce() {
	globalManager.bounces.Inc()
}

// ---------------------------------------------------------------------------
// Session metrics

// RecordSessionStarted increments the session start counter.
func RecordSessionStarted() {
	globalManager.sessionsStarted.Inc()
}

// RecordSessionEnded increments the session end counter for a reason.
func RecordSessionEnded(reason string) {
	globalManager.sessionsEnded.WithLabelValues(reason).Inc()
}

// UpdateActiveSessions sets the live session gauge.
func UpdateActiveSessions(count int) {
	globalManager.activeSessions.Set(float64(count))
}

// ---------------------------------------------------------------------------
// Store metrics

// UpdateStoreEntries sets the visitor state entry gauge.
func UpdateStoreEntries(count int) {
	globalManager.storeEntries.Set(float64(count))
}

// RecordStoreExpiry increments the TTL reap counter.
func RecordStoreExpiry() {
	globalManager.storeExpiries.Inc()
}

// ---------------------------------------------------------------------------
// Queue metrics

// UpdateQueueSize sets the queue size gauge.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity gauge.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueues.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeues.Inc()
}

// ---------------------------------------------------------------------------
// Worker metrics

// UpdateWorkerCount sets the worker count gauge.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// ---------------------------------------------------------------------------
// HTTP metrics

// RecordHTTPRequest increments the request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records one request duration sample.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// ---------------------------------------------------------------------------
// Error metrics

// RecordErrorByComponent increments the component error counter.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType increments the typed error counter.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint increments the endpoint error counter.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records one failed-operation latency sample.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// ---------------------------------------------------------------------------
// System metrics

// UpdateSystemMemoryUsage sets the allocated memory gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records one GC pause sample.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by the
// global manager so HTTP handlers can serve it.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
