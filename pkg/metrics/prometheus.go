// Package metrics provides Prometheus metrics for the judging service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Save outcomes used as the "outcome" label of the saves counter.
const (
	OutcomeSaved    = "saved"
	OutcomeConflict = "conflict"
	OutcomeFailed   = "failed"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Judging
	sessionsOpened    prometheus.Counter
	activeSessions    prometheus.Gauge
	scoreInputs       *prometheus.CounterVec
	saves             *prometheus.CounterVec
	saveLatency       prometheus.Histogram
	criteriaRejected  prometheus.Counter
	criteriaSaved     prometheus.Counter
	resultsTeamsSaved prometheus.Histogram

	// Document store
	storeOperations *prometheus.CounterVec
	storeLatency    *prometheus.HistogramVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	rateLimited         prometheus.Counter

	// Notification queue and workers
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter
	notificationsSent  *prometheus.CounterVec
	workerCount        prometheus.Gauge
	workerErrors       prometheus.Counter

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // process-wide metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process-wide registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "ecell",
		subsystem:        "judging",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: m.histogramBuckets, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.sessionsOpened = m.counter("sessions_opened_total", "Total number of judging sessions opened")
	m.activeSessions = m.gauge("active_sessions", "Judging sessions currently held in memory")
	m.scoreInputs = m.counterVec("score_inputs_total", "Raw score inputs by kind (change, commit) and whether they were accepted", "kind", "accepted")
	m.saves = m.counterVec("saves_total", "Results array saves by outcome", "outcome")
	m.saveLatency = m.histogram("save_latency_milliseconds", "Latency of results array saves in milliseconds", m.histogramBuckets)
	m.criteriaRejected = m.counter("criteria_rejected_total", "Criteria saves refused by authoring validation")
	m.criteriaSaved = m.counter("criteria_saved_total", "Criteria saves committed to the store")
	m.resultsTeamsSaved = m.histogram("results_teams_per_save", "Number of team rows written per results save", []float64{1, 2, 5, 10, 20, 50, 100, 250})

	m.storeOperations = m.counterVec("store_operations_total", "Document store operations by op, collection and status", "op", "collection", "status")
	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Document store operation latency in milliseconds", "op", "collection")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.rateLimited = m.counter("http_rate_limited_total", "Requests rejected by the rate limiter")

	m.queueSize = m.gauge("notify_queue_size", "Notifications waiting for dispatch")
	m.queueCapacity = m.gauge("notify_queue_capacity", "Capacity of the notification queue")
	m.queueEnqueued = m.counter("notify_enqueued_total", "Notifications accepted by the queue")
	m.queueDequeued = m.counter("notify_dequeued_total", "Notifications handed to workers")
	m.queueEnqueueErrors = m.counter("notify_enqueue_errors_total", "Notifications dropped at enqueue (full or closed queue)")
	m.notificationsSent = m.counterVec("notifications_sent_total", "Notifications delivered by sink and level", "sink", "level")
	m.workerCount = m.gauge("notify_worker_count", "Notification dispatch workers")
	m.workerErrors = m.counter("notify_worker_errors_total", "Notification sink delivery failures")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint, method and type", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordSessionOpened increments the sessions opened counter.
func RecordSessionOpened() {
	globalManager.sessionsOpened.Inc()
}

// UpdateActiveSessions sets the number of live sessions.
func UpdateActiveSessions(n int) {
	globalManager.activeSessions.Set(float64(n))
}

// RecordScoreInput counts one raw score change or commit.
func RecordScoreInput(kind string, accepted bool) {
	a := "false"
	if accepted {
		a = "true"
	}
	globalManager.scoreInputs.WithLabelValues(kind, a).Inc()
}

// RecordSave counts a results save with its outcome and latency.
func RecordSave(outcome string, teams int, latencyMs float64) {
	globalManager.saves.WithLabelValues(outcome).Inc()
	globalManager.saveLatency.Observe(latencyMs)
	if outcome == OutcomeSaved {
		globalManager.resultsTeamsSaved.Observe(float64(teams))
	}
}

// RecordCriteriaRejected increments the refused criteria saves counter.
func RecordCriteriaRejected() {
	globalManager.criteriaRejected.Inc()
}

// RecordCriteriaSaved increments the committed criteria saves counter.
func RecordCriteriaSaved() {
	globalManager.criteriaSaved.Inc()
}

// RecordStoreOperation records a document store call.
func RecordStoreOperation(op, collection, status string, latencyMs float64) {
	globalManager.storeOperations.WithLabelValues(op, collection, status).Inc()
	globalManager.storeLatency.WithLabelValues(op, collection).Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordRateLimited increments the rate limited requests counter.
func RecordRateLimited() {
	globalManager.rateLimited.Inc()
}

// UpdateQueueSize sets the current notification queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the notification queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordNotificationSent counts a delivered notification.
func RecordNotificationSent(sink, level string) {
	globalManager.notificationsSent.WithLabelValues(sink, level).Inc()
}

// UpdateWorkerCount sets the number of dispatch workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

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
