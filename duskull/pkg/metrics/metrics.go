// Package metrics provides Prometheus metrics for analysis runs and the read API.
package metrics

import (
	"ichor/duskull/defs"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultNamespace = "ichor"
	defaultSubsystem = "duskull"
)

// Manager owns a registry and the metrics registered on it. A nil Manager
// records nothing.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	recordsIngested  *prometheus.CounterVec
	analyses         prometheus.Counter
	stageErrors      *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	daysSummarized   prometheus.Gauge
	httpRequests     *prometheus.CounterVec
}

type Option func(*Manager)

// WithNamespace replaces the metric namespace. An empty namespace keeps the
// default.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithHistogramBuckets sets the buckets of the analysis duration histogram.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        defaultNamespace,
		subsystem:        defaultSubsystem,
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.recordsIngested = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "records_ingested_total",
			Help:      "Total number of export rows ingested by source",
		},
		[]string{"source"},
	)

	m.analyses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "analyses_total",
		Help:      "Total number of completed analysis runs",
	})

	m.stageErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "stage_errors_total",
			Help:      "Total number of failed analysis runs by stage",
		},
		[]string{"stage"},
	)

	m.analysisDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "analysis_duration_seconds",
		Help:      "Histogram of analysis run durations in seconds",
		Buckets:   m.histogramBuckets,
	})

	m.daysSummarized = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "days_summarized",
		Help:      "Number of calendar days in the last analysis",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)
}

func (m *Manager) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Manager) RecordIngested(source string, rows int) {
	if m == nil {
		return
	}
	m.recordsIngested.WithLabelValues(source).Add(float64(rows))
}

func (m *Manager) RecordAnalysis(elapsed time.Duration, days int) {
	if m == nil {
		return
	}
	m.analyses.Inc()
	m.analysisDuration.Observe(elapsed.Seconds())
	m.daysSummarized.Set(float64(days))
}

func (m *Manager) RecordStageError(stage defs.Stage) {
	if m == nil {
		return
	}
	m.stageErrors.WithLabelValues(stage.String()).Inc()
}

func (m *Manager) RecordHTTPRequest(endpoint, method string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(endpoint, method, strconv.Itoa(status)).Inc()
}

// Handler serves the manager's registry in the Prometheus text format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
