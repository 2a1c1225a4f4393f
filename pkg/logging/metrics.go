package logging

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stream outcomes used as metric labels
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCanceled  = "canceled"
)

// MetricsConfig defines configuration for metrics collection
type MetricsConfig struct {
	Enabled       bool              `yaml:"enabled" json:"enabled" toml:"enabled"`
	Path          string            `yaml:"path,omitempty" json:"path,omitempty" toml:"path"`
	Namespace     string            `yaml:"namespace,omitempty" json:"namespace,omitempty" toml:"namespace"`
	Subsystem     string            `yaml:"subsystem,omitempty" json:"subsystem,omitempty" toml:"subsystem"`
	Labels        map[string]string `yaml:"labels,omitempty" json:"labels,omitempty" toml:"labels"`
	EnableRuntime bool              `yaml:"enableRuntime" json:"enableRuntime" toml:"enableRuntime"`
}

// DefaultMetricsConfig returns default metrics configuration
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:       true,
		Path:          "/metrics",
		Namespace:     "custom_gateway",
		Subsystem:     "core",
		EnableRuntime: true,
	}
}

// MetricsCollector records gateway metrics on a private Prometheus registry.
// All methods are safe to call on a nil collector.
type MetricsCollector struct {
	streamsStarted  prometheus.Counter
	streamsFinished *prometheus.CounterVec
	streamDuration  *prometheus.HistogramVec
	activeStreams   prometheus.Gauge
	itemsEmitted    *prometheus.CounterVec
	errors          *prometheus.CounterVec

	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	sourceQueries *prometheus.CounterVec
	sourceLatency *prometheus.HistogramVec

	registry *prometheus.Registry
	config   MetricsConfig
}

// NewMetricsCollector creates a new metrics collector, or nil when metrics
// are disabled
func NewMetricsCollector(config MetricsConfig) *MetricsCollector {
	if !config.Enabled {
		return nil
	}

	mc := &MetricsCollector{
		registry: prometheus.NewRegistry(),
		config:   config,
	}
	mc.initializeMetrics()

	mc.registry.MustRegister(
		mc.streamsStarted,
		mc.streamsFinished,
		mc.streamDuration,
		mc.activeStreams,
		mc.itemsEmitted,
		mc.errors,
		mc.requestCounter,
		mc.requestDuration,
		mc.sourceQueries,
		mc.sourceLatency,
	)

	if config.EnableRuntime {
		mc.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return mc
}

func (mc *MetricsCollector) initializeMetrics() {
	ns, sub, labels := mc.config.Namespace, mc.config.Subsystem, prometheus.Labels(mc.config.Labels)

	mc.streamsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns, Subsystem: sub, ConstLabels: labels,
		Name: "import_streams_started_total",
		Help: "Total number of import streams started",
	})

	mc.streamsFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: sub, ConstLabels: labels,
		Name: "import_streams_finished_total",
		Help: "Total number of import streams finished, by outcome",
	}, []string{"outcome"})

	mc.streamDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: sub, ConstLabels: labels,
		Name:    "import_stream_duration_seconds",
		Help:    "Duration of import streams in seconds",
		Buckets: []float64{0.01, 0.1, 1, 10, 60, 300, 1800},
	}, []string{"outcome"})

	mc.activeStreams = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns, Subsystem: sub, ConstLabels: labels,
		Name: "import_streams_active",
		Help: "Number of import streams in progress",
	})

	mc.itemsEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: sub, ConstLabels: labels,
		Name: "import_items_emitted_total",
		Help: "Total number of response messages emitted, by payload case",
	}, []string{"case"})

	mc.errors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: sub, ConstLabels: labels,
		Name: "errors_total",
		Help: "Total number of errors, by code and component",
	}, []string{"code", "component"})

	mc.requestCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: sub, ConstLabels: labels,
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status_code"})

	mc.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: sub, ConstLabels: labels,
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	mc.sourceQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: sub, ConstLabels: labels,
		Name: "source_queries_total",
		Help: "Total number of item source queries",
	}, []string{"backend", "operation"})

	mc.sourceLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: sub, ConstLabels: labels,
		Name:    "source_query_duration_seconds",
		Help:    "Duration of item source queries in seconds",
		Buckets: []float64{0.001, 0.01, 0.1, 1.0, 5.0},
	}, []string{"backend", "operation"})
}

// StreamStarted records the start of an import stream
func (mc *MetricsCollector) StreamStarted() {
	if mc == nil {
		return
	}
	mc.streamsStarted.Inc()
	mc.activeStreams.Inc()
}

// StreamFinished records the end of an import stream
func (mc *MetricsCollector) StreamFinished(outcome string, duration time.Duration) {
	if mc == nil {
		return
	}
	mc.activeStreams.Dec()
	mc.streamsFinished.WithLabelValues(outcome).Inc()
	mc.streamDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordItem records one emitted response message
func (mc *MetricsCollector) RecordItem(payloadCase string) {
	if mc == nil {
		return
	}
	mc.itemsEmitted.WithLabelValues(payloadCase).Inc()
}

// RecordError records an error by code
func (mc *MetricsCollector) RecordError(code, component string) {
	if mc == nil {
		return
	}
	mc.errors.WithLabelValues(code, component).Inc()
}

// RecordRequest records a completed HTTP request
func (mc *MetricsCollector) RecordRequest(method, path string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}
	mc.requestCounter.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	mc.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordSourceQuery records a query against an item source backend
func (mc *MetricsCollector) RecordSourceQuery(backend, operation string, duration time.Duration) {
	if mc == nil {
		return
	}
	mc.sourceQueries.WithLabelValues(backend, operation).Inc()
	mc.sourceLatency.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// Registry returns the private registry the collector registers on
func (mc *MetricsCollector) Registry() *prometheus.Registry {
	if mc == nil {
		return nil
	}
	return mc.registry
}

// GetHTTPHandler returns the HTTP handler for metrics endpoint
func (mc *MetricsCollector) GetHTTPHandler() http.Handler {
	if mc == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(mc.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// Close releases collector resources
func (mc *MetricsCollector) Close() error {
	return nil
}
