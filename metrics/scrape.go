package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ScrapeRegistry registers collectors with a private Prometheus registry that
// the server exposes over HTTP.
type ScrapeRegistry struct {
	prom *prometheus.Registry
}

// NewScrapeRegistry creates a registry with the Go runtime and process
// collectors already registered.
func NewScrapeRegistry() (*ScrapeRegistry, error) {
	reg := prometheus.NewRegistry()
	for name, c := range map[string]prometheus.Collector{
		"go":      collectors.NewGoCollector(),
		"process": collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering %s collector: %w", name, err)
		}
	}
	return &ScrapeRegistry{prom: reg}, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (r *ScrapeRegistry) Handler() http.Handler {
	return promhttp.HandlerFor(r.prom, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func register[C prometheus.Collector](r *ScrapeRegistry, kind, name string, c C) (C, error) {
	if err := r.prom.Register(c); err != nil {
		var zero C
		return zero, fmt.Errorf("registering %s %q: %w", kind, name, err)
	}
	return c, nil
}

func (r *ScrapeRegistry) NewGauge(opts prometheus.GaugeOpts) (Gauge, error) {
	return register(r, "gauge", opts.Name, prometheus.NewGauge(opts))
}

func (r *ScrapeRegistry) NewGaugeVec(opts prometheus.GaugeOpts, labels []string) (GaugeVec, error) {
	v, err := register(r, "gauge vec", opts.Name, prometheus.NewGaugeVec(opts, labels))
	if err != nil {
		return nil, err
	}
	return scrapeGaugeVec{v}, nil
}

func (r *ScrapeRegistry) NewCounter(opts prometheus.CounterOpts) (Counter, error) {
	return register(r, "counter", opts.Name, prometheus.NewCounter(opts))
}

func (r *ScrapeRegistry) NewCounterVec(opts prometheus.CounterOpts, labels []string) (CounterVec, error) {
	v, err := register(r, "counter vec", opts.Name, prometheus.NewCounterVec(opts, labels))
	if err != nil {
		return nil, err
	}
	return scrapeCounterVec{v}, nil
}

// The vec adapters narrow the client_golang return types to the package
// interfaces.
type scrapeGaugeVec struct{ vec *prometheus.GaugeVec }

func (v scrapeGaugeVec) With(labels prometheus.Labels) Gauge { return v.vec.With(labels) }

type scrapeCounterVec struct{ vec *prometheus.CounterVec }

func (v scrapeCounterVec) With(labels prometheus.Labels) Counter { return v.vec.With(labels) }
