// Package metrics provides Prometheus metrics for the pitchside assessment service.
package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels shared by operation counters.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Manager manages all Prometheus metrics for the assessment service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Assessment lifecycle
	operations           *prometheus.CounterVec
	operationLatency     *prometheus.HistogramVec
	partialFinalizations prometheus.Counter
	duplicateRejections  prometheus.Counter
	accessDenied         *prometheus.CounterVec
	validationFailures   *prometheus.CounterVec
	assessmentsFinalized prometheus.Counter
	scoresWritten        prometheus.Counter
	improvementSnapshots *prometheus.CounterVec

	// Storage
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec

	// Progress cache
	cacheRequests *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "pitchside",
		subsystem:        "assessments",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.operations = auto.NewCounterVec(
		m.counterOpts("operations_total", "Assessment operations by operation and outcome"),
		[]string{"operation", "outcome"},
	)
	m.operationLatency = auto.NewHistogramVec(
		m.histogramOpts("operation_duration_milliseconds", "Assessment operation latency in milliseconds"),
		[]string{"operation"},
	)
	m.partialFinalizations = auto.NewCounter(
		m.counterOpts("partial_finalizations_total", "Assessments finalized with required skills missing"),
	)
	m.assessmentsFinalized = auto.NewCounter(
		m.counterOpts("finalized_total", "Assessments transitioned to finalized"),
	)
	m.duplicateRejections = auto.NewCounter(
		m.counterOpts("duplicate_rejections_total", "Writes rejected by the one-per-month rule"),
	)
	m.accessDenied = auto.NewCounterVec(
		m.counterOpts("access_denied_total", "Authorization refusals by action and role"),
		[]string{"action", "role"},
	)
	m.validationFailures = auto.NewCounterVec(
		m.counterOpts("validation_failures_total", "Rejected inputs by operation"),
		[]string{"operation"},
	)
	m.scoresWritten = auto.NewCounter(
		m.counterOpts("scores_written_total", "Skill scores persisted"),
	)
	m.improvementSnapshots = auto.NewCounterVec(
		m.counterOpts("improvement_snapshots_total", "Score snapshots by whether a previous score existed"),
		[]string{"has_previous"},
	)

	m.storeLatency = auto.NewHistogramVec(
		m.histogramOpts("store_operation_duration_milliseconds", "Store operation latency in milliseconds"),
		[]string{"driver", "operation"},
	)
	m.storeErrors = auto.NewCounterVec(
		m.counterOpts("store_errors_total", "Store failures by driver and operation"),
		[]string{"driver", "operation"},
	)

	m.cacheRequests = auto.NewCounterVec(
		m.counterOpts("progress_cache_requests_total", "Progress cache lookups by result"),
		[]string{"result"},
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Total number of errors by component"),
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap memory in use in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
}

// RecordOperation counts one finished assessment operation.
func RecordOperation(operation, outcome string) {
	globalManager.operations.WithLabelValues(operation, outcome).Inc()
}

// RecordOperationLatency records operation latency in milliseconds.
func RecordOperationLatency(operation string, latencyMs float64) {
	globalManager.operationLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordFinalized counts a finalization; partial ones are counted separately too.
func RecordFinalized(partial bool) {
	globalManager.assessmentsFinalized.Inc()
	if partial {
		globalManager.partialFinalizations.Inc()
	}
}

// RecordDuplicateRejected counts a one-per-month rejection.
func RecordDuplicateRejected() {
	globalManager.duplicateRejections.Inc()
}

// RecordAccessDenied counts an authorization refusal.
func RecordAccessDenied(action, role string) {
	globalManager.accessDenied.WithLabelValues(action, role).Inc()
}

// RecordValidationFailure counts rejected input for operation.
func RecordValidationFailure(operation string) {
	globalManager.validationFailures.WithLabelValues(operation).Inc()
}

// RecordScoresWritten counts persisted scores and their snapshot kind.
func RecordScoresWritten(withPrevious, withoutPrevious int) {
	globalManager.scoresWritten.Add(float64(withPrevious + withoutPrevious))
	globalManager.improvementSnapshots.WithLabelValues("true").Add(float64(withPrevious))
	globalManager.improvementSnapshots.WithLabelValues("false").Add(float64(withoutPrevious))
}

// RecordStoreLatency records store latency in milliseconds.
func RecordStoreLatency(driver, operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(driver, operation).Observe(latencyMs)
}

// RecordStoreError counts a store failure.
func RecordStoreError(driver, operation string) {
	globalManager.storeErrors.WithLabelValues(driver, operation).Inc()
}

// RecordCacheHit counts a progress cache hit.
func RecordCacheHit() {
	globalManager.cacheRequests.WithLabelValues("hit").Inc()
}

// RecordCacheMiss counts a progress cache miss.
func RecordCacheMiss() {
	globalManager.cacheRequests.WithLabelValues("miss").Inc()
}

// RecordCacheError counts a progress cache failure.
func RecordCacheError() {
	globalManager.cacheRequests.WithLabelValues("error").Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMetrics samples heap usage and goroutine count.
func UpdateSystemMetrics() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	globalManager.systemMemoryUsage.Set(float64(ms.HeapAlloc))
	globalManager.systemGoroutineCount.Set(float64(runtime.NumGoroutine()))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
