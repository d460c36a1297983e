package metrics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/prometheus/prompb"
)

// DefaultPushTimeout bounds a single Flush.
const DefaultPushTimeout = 30 * time.Second

// PushConfig configures a PushRegistry.
type PushConfig struct {
	// URL is the base URL of the remote write endpoint, e.g. "http://victoria:8428".
	URL string
	// Prefix is prepended to every metric name followed by an underscore.
	Prefix   string
	Job      string
	Instance string
	Timeout  time.Duration
}

// PushRegistry buffers the latest value of every series and writes them all
// in one remote write request on Flush.
type PushRegistry struct {
	cfg    PushConfig
	url    string
	client *http.Client
	now    func() time.Time

	mu     sync.Mutex
	series map[string]*series
}

type series struct {
	name   string
	labels map[string]string
	value  float64
}

// NewPushRegistry creates a PushRegistry for cfg.
func NewPushRegistry(cfg PushConfig) *PushRegistry {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultPushTimeout
	}
	return &PushRegistry{
		cfg:    cfg,
		url:    strings.TrimRight(cfg.URL, "/") + "/api/v1/write",
		client: &http.Client{Timeout: cfg.Timeout},
		now:    time.Now,
		series: make(map[string]*series),
	}
}

func (r *PushRegistry) NewGauge(opts prometheus.GaugeOpts) (Gauge, error) {
	return &pushMetric{reg: r, name: opts.Name}, nil
}

func (r *PushRegistry) NewGaugeVec(opts prometheus.GaugeOpts, _ []string) (GaugeVec, error) {
	return pushGaugeVec{reg: r, name: opts.Name}, nil
}

func (r *PushRegistry) NewCounter(opts prometheus.CounterOpts) (Counter, error) {
	return &pushMetric{reg: r, name: opts.Name}, nil
}

func (r *PushRegistry) NewCounterVec(opts prometheus.CounterOpts, _ []string) (CounterVec, error) {
	return pushCounterVec{reg: r, name: opts.Name}, nil
}

// update applies fn to the buffered value of the series.
func (r *PushRegistry) update(name string, labels map[string]string, fn func(float64) float64) {
	key := seriesKey(name, labels)
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.series[key]
	if !ok {
		s = &series{name: name, labels: labels}
		r.series[key] = s
	}
	s.value = fn(s.value)
}

// Flush writes every buffered series to the remote endpoint. Buffered values
// are kept so counters continue to accumulate across flushes.
func (r *PushRegistry) Flush(ctx context.Context) error {
	r.mu.Lock()
	ts := make([]prompb.TimeSeries, 0, len(r.series))
	keys := make([]string, 0, len(r.series))
	for k := range r.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	now := r.now().UnixMilli()
	for _, k := range keys {
		ts = append(ts, r.toTimeSeries(r.series[k], now))
	}
	r.mu.Unlock()

	if len(ts) == 0 {
		return nil
	}

	data, err := proto.Marshal(&prompb.WriteRequest{Timeseries: ts})
	if err != nil {
		return fmt.Errorf("marshaling write request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(snappy.Encode(nil, data)))
	if err != nil {
		return fmt.Errorf("creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Encoding", "snappy")
	req.Header.Set("Content-Type", "application/x-protobuf")
	req.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (r *PushRegistry) toTimeSeries(s *series, ts int64) prompb.TimeSeries {
	name := s.name
	if r.cfg.Prefix != "" {
		name = r.cfg.Prefix + "_" + name
	}
	labels := []prompb.Label{{Name: "__name__", Value: name}}
	if r.cfg.Job != "" {
		labels = append(labels, prompb.Label{Name: "job", Value: r.cfg.Job})
	}
	if r.cfg.Instance != "" {
		labels = append(labels, prompb.Label{Name: "instance", Value: r.cfg.Instance})
	}
	names := make([]string, 0, len(s.labels))
	for k := range s.labels {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		labels = append(labels, prompb.Label{Name: k, Value: s.labels[k]})
	}
	return prompb.TimeSeries{
		Labels:  labels,
		Samples: []prompb.Sample{{Value: s.value, Timestamp: ts}},
	}
}

func seriesKey(name string, labels map[string]string) string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString(name)
	for _, k := range names {
		b.WriteString("|" + k + "=" + labels[k])
	}
	return b.String()
}

// pushMetric backs both gauges and counters; only the update function differs.
type pushMetric struct {
	reg    *PushRegistry
	name   string
	labels map[string]string
}

func (m *pushMetric) Set(v float64) {
	m.reg.update(m.name, m.labels, func(float64) float64 { return v })
}

func (m *pushMetric) Inc() { m.Add(1) }

func (m *pushMetric) Add(v float64) {
	if v < 0 {
		panic("metrics: counter cannot decrease in value")
	}
	m.reg.update(m.name, m.labels, func(old float64) float64 { return old + v })
}

type pushGaugeVec struct {
	reg  *PushRegistry
	name string
}

func (v pushGaugeVec) With(labels prometheus.Labels) Gauge {
	return &pushMetric{reg: v.reg, name: v.name, labels: copyLabels(labels)}
}

type pushCounterVec struct {
	reg  *PushRegistry
	name string
}

func (v pushCounterVec) With(labels prometheus.Labels) Counter {
	return &pushMetric{reg: v.reg, name: v.name, labels: copyLabels(labels)}
}

func copyLabels(labels prometheus.Labels) map[string]string {
	out := make(map[string]string, len(labels))
	for k, val := range labels {
		out[k] = val
	}
	return out
}
