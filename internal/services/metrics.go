package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	// Capture metrics
	CapturesTotal *prometheus.CounterVec // by platform

	// Distillation metrics
	DistillRequests  prometheus.Counter
	DistillLatency   prometheus.Histogram
	DistillErrors    *prometheus.CounterVec // by error kind
	CompressionRatio prometheus.Histogram

	// Analytics ingest metrics
	EventsValidated prometheus.Counter
	EventsRejected  *prometheus.CounterVec // by violation code
}

var globalMetrics *Metrics

// InitMetrics initializes the Prometheus metrics
func InitMetrics() *Metrics {
	metrics := &Metrics{
		CapturesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "distill_captures_total",
			Help: "Total number of conversations captured by platform",
		}, []string{"platform"}),

		DistillRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "distill_requests_total",
			Help: "Total number of distillation requests processed",
		}),

		DistillLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "distill_request_duration_seconds",
			Help:    "Distillation latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		}),

		DistillErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "distill_errors_total",
			Help: "Total number of distillation errors by kind",
		}, []string{"kind"}),

		CompressionRatio: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "distill_compression_ratio",
			Help:    "Compression ratio of successful distillations",
			Buckets: []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.7, 0.9, 1, 1.5},
		}),

		EventsValidated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "distill_events_validated_total",
			Help: "Total number of analytics events accepted by the validator",
		}),

		EventsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "distill_events_rejected_total",
			Help: "Total number of analytics events rejected by violation code",
		}, []string{"code"}),
	}

	globalMetrics = metrics
	return metrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	return globalMetrics
}

// RecordCapture records a captured conversation
func (m *Metrics) RecordCapture(platform string) {
	m.CapturesTotal.WithLabelValues(platform).Inc()
}

// RecordDistill records a distillation request and its latency
func (m *Metrics) RecordDistill(seconds float64) {
	m.DistillRequests.Inc()
	m.DistillLatency.Observe(seconds)
}

// RecordDistillError records a distillation error
func (m *Metrics) RecordDistillError(kind string) {
	m.DistillErrors.WithLabelValues(kind).Inc()
}

// RecordCompressionRatio records a successful distillation's ratio
func (m *Metrics) RecordCompressionRatio(ratio float64) {
	m.CompressionRatio.Observe(ratio)
}

// RecordEventValidated records an accepted analytics event
func (m *Metrics) RecordEventValidated() {
	m.EventsValidated.Inc()
}

// RecordEventRejected records a rejected analytics event
func (m *Metrics) RecordEventRejected(code string) {
	m.EventsRejected.WithLabelValues(code).Inc()
}
