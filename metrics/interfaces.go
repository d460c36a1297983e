// Package metrics exposes automation counters in a Prometheus-compatible way.
//
// Two registries implement the same interface:
//   - ScrapeRegistry (server): collectors live in a Prometheus registry served on /metrics
//   - PushRegistry (CLI): samples are buffered and written to a remote write endpoint
//     (VictoriaMetrics or Prometheus) when Flush is called at the end of a run
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Gauge holds a value that may go up and down.
type Gauge interface {
	Set(float64)
}

// Counter holds a monotonically increasing value.
type Counter interface {
	Inc()
	// Add panics on negative values.
	Add(float64)
}

// GaugeVec returns a Gauge per label set.
type GaugeVec interface {
	With(prometheus.Labels) Gauge
}

// CounterVec returns a Counter per label set.
type CounterVec interface {
	With(prometheus.Labels) Counter
}

// Registry creates metrics for one of the delivery modes.
type Registry interface {
	NewGauge(opts prometheus.GaugeOpts) (Gauge, error)
	NewGaugeVec(opts prometheus.GaugeOpts, labels []string) (GaugeVec, error)
	NewCounter(opts prometheus.CounterOpts) (Counter, error)
	NewCounterVec(opts prometheus.CounterOpts, labels []string) (CounterVec, error)
}
