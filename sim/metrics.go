package sim

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector records operational metrics of an evaluation run.
// Implementations must be safe for concurrent use; replicates report
// from worker goroutines.
type MetricsCollector interface {
	IncReplicateCount()
	ObserveReplicateDuration(d time.Duration)
	SetRunDuration(d time.Duration)
}

// NopMetricsCollector discards all metrics. It is the default.
type NopMetricsCollector struct{}

func (NopMetricsCollector) IncReplicateCount()                     {}
func (NopMetricsCollector) ObserveReplicateDuration(time.Duration) {}
func (NopMetricsCollector) SetRunDuration(time.Duration)           {}

// PrometheusMetricsCollector implements MetricsCollector using
// prometheus metrics. The caller registers the collectors.
type PrometheusMetricsCollector struct {
	ReplicateCount    prometheus.Counter
	ReplicateDuration prometheus.Histogram
	RunDuration       prometheus.Gauge
}

func (m *PrometheusMetricsCollector) IncReplicateCount() { m.ReplicateCount.Inc() }
func (m *PrometheusMetricsCollector) ObserveReplicateDuration(d time.Duration) {
	m.ReplicateDuration.Observe(d.Seconds())
}
func (m *PrometheusMetricsCollector) SetRunDuration(d time.Duration) {
	m.RunDuration.Set(d.Seconds())
}
