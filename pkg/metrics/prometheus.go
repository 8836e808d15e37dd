// Package metrics provides Prometheus metrics for the hyperlocal service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Ingress
	eventsReceived  *prometheus.CounterVec
	eventsRejected  *prometheus.CounterVec
	eventsDuplicate prometheus.Counter
	streamClients   prometheus.Gauge

	// Aggregation
	eventsProcessed   *prometheus.CounterVec
	eventErrors       *prometheus.CounterVec
	directories       prometheus.Gauge
	presentDevices    prometheus.Gauge
	registeredDevices prometheus.Gauge
	handleLatency     prometheus.Histogram

	// Stories
	storyResolutions *prometheus.CounterVec
	storyLatency     prometheus.Histogram
	storiesCached    prometheus.Gauge
	featuredStories  prometheus.Gauge

	// Featuring
	featureTicks      prometheus.Counter
	featuredSwitches  prometheus.Counter
	featuredDirPeople prometheus.Gauge
	featuringLatency  prometheus.Histogram

	// Queue
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueued    prometheus.Counter
	queueDequeued    prometheus.Counter
	queueErrors      *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec
	errorsByType        *prometheus.CounterVec
	errorsByComponent   *prometheus.CounterVec
	errorLatency        *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "hyperlocal",
		subsystem:        "dashboard",
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.eventsReceived = m.counterVec("events_received_total", "Proximity events accepted at ingress by kind and transport", "kind", "transport")
	m.eventsRejected = m.counterVec("events_rejected_total", "Proximity events rejected at ingress by reason", "reason")
	m.eventsDuplicate = m.counter("events_duplicate_total", "Events dropped because their event id was already seen")
	m.streamClients = m.gauge("stream_clients", "Connected websocket event stream clients")

	m.eventsProcessed = m.counterVec("events_processed_total", "Proximity events applied to the directory model by kind", "kind")
	m.eventErrors = m.counterVec("event_errors_total", "Proximity events the aggregator refused by reason", "reason")
	m.directories = m.gauge("directories", "Number of known directories (locations)")
	m.presentDevices = m.gauge("present_devices", "Devices currently associated with a directory")
	m.registeredDevices = m.gauge("registered_devices", "Devices in the device registry")
	m.handleLatency = m.histogram("handle_latency_milliseconds", "Time spent applying one event to the directory model", m.histogramBuckets)

	m.storyResolutions = m.counterVec("story_resolutions_total", "Story lookups completed by outcome", "outcome")
	m.storyLatency = m.histogram("story_latency_milliseconds", "Story lookup latency in milliseconds",
		[]float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000})
	m.storiesCached = m.gauge("stories_cached", "Stories held by the story registry")
	m.featuredStories = m.gauge("featured_stories", "Person-bearing stories eligible for featuring")

	m.featureTicks = m.counter("feature_ticks_total", "Featuring engine ticks")
	m.featuredSwitches = m.counter("featured_directory_switches_total", "Ticks that changed the featured directory")
	m.featuredDirPeople = m.gauge("featured_directory_people", "People count of the featured directory at the last tick")
	m.featuringLatency = m.histogram("featuring_latency_milliseconds", "Featuring tick duration in milliseconds", m.histogramBuckets)

	m.queueSize = m.gauge("queue_size", "Current size of the event queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum event queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (current size / capacity)")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Total number of events enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Total number of events dequeued")
	m.queueErrors = m.counterVec("queue_enqueue_errors_total", "Enqueue failures by reason", "reason")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "Total number of errors by endpoint", "endpoint", "method", "error_type")
	m.errorsByType = m.counterVec("errors_by_type_total", "Total number of errors by type", "error_type", "severity")
	m.errorsByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component", "component", "error_type")
	m.errorLatency = m.histogramVec("error_latency_milliseconds", "Latency of operations that resulted in errors", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Ingress.

// RecordEventReceived counts an event accepted at ingress.
func RecordEventReceived(kind, transport string) {
	globalManager.eventsReceived.WithLabelValues(kind, transport).Inc()
}

// RecordEventRejected counts an event refused at ingress.
func RecordEventRejected(reason string) {
	globalManager.eventsRejected.WithLabelValues(reason).Inc()
}

// RecordEventDuplicate increments the duplicate events counter.
func RecordEventDuplicate() {
	globalManager.eventsDuplicate.Inc()
}

// UpdateStreamClients sets the number of connected stream clients.
func UpdateStreamClients(n int) {
	globalManager.streamClients.Set(float64(n))
}

// Aggregation.

// RecordEventProcessed counts an event applied to the directory model.
func RecordEventProcessed(kind string) {
	globalManager.eventsProcessed.WithLabelValues(kind).Inc()
}

// RecordEventError counts an event the aggregator refused.
func RecordEventError(reason string) {
	globalManager.eventErrors.WithLabelValues(reason).Inc()
}

// UpdateDirectories sets the number of known directories.
func UpdateDirectories(n int) {
	globalManager.directories.Set(float64(n))
}

// UpdatePresentDevices sets the number of devices held by directories.
func UpdatePresentDevices(n int) {
	globalManager.presentDevices.Set(float64(n))
}

// UpdateRegisteredDevices sets the device registry size.
func UpdateRegisteredDevices(n int) {
	globalManager.registeredDevices.Set(float64(n))
}

// RecordHandleLatency records the time spent in one aggregator step.
func RecordHandleLatency(latencyMs float64) {
	globalManager.handleLatency.Observe(latencyMs)
}

// Stories.

// RecordStoryResolution counts a completed story lookup by outcome.
func RecordStoryResolution(outcome string) {
	globalManager.storyResolutions.WithLabelValues(outcome).Inc()
}

// RecordStoryLatency records story lookup latency.
func RecordStoryLatency(latencyMs float64) {
	globalManager.storyLatency.Observe(latencyMs)
}

// UpdateStoriesCached sets the story registry size.
func UpdateStoriesCached(n int) {
	globalManager.storiesCached.Set(float64(n))
}

// UpdateFeaturedStories sets the number of featurable stories.
func UpdateFeaturedStories(n int) {
	globalManager.featuredStories.Set(float64(n))
}

// Featuring.

// RecordFeatureTick counts a featuring tick, noting whether the directory changed.
func RecordFeatureTick(switched bool, people int, latencyMs float64) {
	globalManager.featureTicks.Inc()
	if switched {
		globalManager.featuredSwitches.Inc()
	}
	globalManager.featuredDirPeople.Set(float64(people))
	globalManager.featuringLatency.Observe(latencyMs)
}

// Queue.

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueSize sets the current queue size and utilization.
func UpdateQueueSize(size, capacity int) {
	globalManager.queueSize.Set(float64(size))
	if capacity > 0 {
		globalManager.queueUtilization.Set(float64(size) / float64(capacity))
	}
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError counts a failed enqueue.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueErrors.WithLabelValues(reason).Inc()
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorsByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System.

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
