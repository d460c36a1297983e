package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/prometheus/prompb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/actions"
)

// remoteWriteServer decodes every request it receives onto the returned channel.
func remoteWriteServer(t *testing.T) (*httptest.Server, <-chan []prompb.TimeSeries) {
	t.Helper()
	received := make(chan []prompb.TimeSeries, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/write", r.URL.Path)
		assert.Equal(t, "snappy", r.Header.Get("Content-Encoding"))
		assert.Equal(t, "application/x-protobuf", r.Header.Get("Content-Type"))
		assert.Equal(t, "0.1.0", r.Header.Get("X-Prometheus-Remote-Write-Version"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		decoded, err := snappy.Decode(nil, body)
		require.NoError(t, err)

		var req prompb.WriteRequest
		require.NoError(t, proto.Unmarshal(decoded, &req))
		received <- req.Timeseries
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, received
}

func labelsOf(ts prompb.TimeSeries) map[string]string {
	out := make(map[string]string, len(ts.Labels))
	for _, l := range ts.Labels {
		out[l.Name] = l.Value
	}
	return out
}

func TestPushRegistry_FlushBatchesSeries(t *testing.T) {
	srv, received := remoteWriteServer(t)
	reg := NewPushRegistry(PushConfig{URL: srv.URL + "/", Prefix: "instabot", Job: "cli", Instance: "host1"})

	gauge, err := reg.NewGauge(prometheus.GaugeOpts{Name: "active_accounts"})
	require.NoError(t, err)
	vec, err := reg.NewCounterVec(prometheus.CounterOpts{Name: "actions_total"}, []string{"category"})
	require.NoError(t, err)

	gauge.Set(3)
	gauge.Set(2)
	vec.With(prometheus.Labels{"category": "like_posts"}).Inc()
	vec.With(prometheus.Labels{"category": "like_posts"}).Add(2)
	vec.With(prometheus.Labels{"category": "direct_message"}).Inc()

	require.NoError(t, reg.Flush(context.Background()))

	series := <-received
	require.Len(t, series, 3, "one series per name and label set")

	values := map[string]float64{}
	for _, ts := range series {
		labels := labelsOf(ts)
		assert.Equal(t, "cli", labels["job"])
		assert.Equal(t, "host1", labels["instance"])
		require.Len(t, ts.Samples, 1)
		values[labels["__name__"]+"/"+labels["category"]] = ts.Samples[0].Value
	}
	assert.Equal(t, map[string]float64{
		"instabot_active_accounts/":             2,
		"instabot_actions_total/like_posts":     3,
		"instabot_actions_total/direct_message": 1,
	}, values)
}

func TestPushRegistry_FlushEmpty(t *testing.T) {
	reg := NewPushRegistry(PushConfig{URL: "http://127.0.0.1:1"})
	assert.NoError(t, reg.Flush(context.Background()), "nothing to send")
}

func TestPushRegistry_FlushError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad payload", http.StatusBadRequest)
	}))
	defer srv.Close()

	reg := NewPushRegistry(PushConfig{URL: srv.URL, Timeout: time.Second})
	c, err := reg.NewCounter(prometheus.CounterOpts{Name: "x"})
	require.NoError(t, err)
	c.Inc()

	err = reg.Flush(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestPushCounter_NegativeAddPanics(t *testing.T) {
	reg := NewPushRegistry(PushConfig{URL: "http://localhost"})
	c, err := reg.NewCounter(prometheus.CounterOpts{Name: "x"})
	require.NoError(t, err)
	assert.Panics(t, func() { c.Add(-1) })
}

func TestSeriesKey_LabelOrder(t *testing.T) {
	a := seriesKey("m", map[string]string{"a": "1", "b": "2"})
	b := seriesKey("m", map[string]string{"b": "2", "a": "1"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, seriesKey("m", map[string]string{"a": "1"}))
}

func TestScrapeRegistry(t *testing.T) {
	reg, err := NewScrapeRegistry()
	require.NoError(t, err)

	counter, err := reg.NewCounter(prometheus.CounterOpts{Name: "test_counter", Help: "help"})
	require.NoError(t, err)
	counter.Add(5)

	_, err = reg.NewCounter(prometheus.CounterOpts{Name: "test_counter", Help: "help"})
	assert.Error(t, err, "duplicate registration")

	srv := httptest.NewServer(reg.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "test_counter 5")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestAutomation_Scrape(t *testing.T) {
	reg, err := NewScrapeRegistry()
	require.NoError(t, err)
	a, err := NewAutomation(reg)
	require.NoError(t, err)

	a.ObserveAction(actions.Outcome{Category: actions.LikePosts, Success: true})
	a.ObserveAction(actions.Outcome{Category: actions.DirectMessage, Success: false})
	a.ObserveTarget("completed")
	a.ObserveAccountRun("acc1", true, 75)
	a.SetActiveAccounts(2)
	a.SessionFinished(time.Unix(1700000000, 0))

	srv := httptest.NewServer(reg.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)

	assert.Contains(t, body, `actions_total{category="like_posts",result="success"} 1`)
	assert.Contains(t, body, `actions_total{category="direct_message",result="failure"} 1`)
	assert.Contains(t, body, `targets_total{status="completed"} 1`)
	assert.Contains(t, body, `account_runs_total{result="success"} 1`)
	assert.Contains(t, body, `account_success_rate_percent{account="acc1"} 75`)
	assert.Contains(t, body, "active_accounts 2")
	assert.Contains(t, body, "last_session_timestamp_seconds 1.7e+09")
}

func TestAutomation_Nil(t *testing.T) {
	var a *Automation
	assert.NotPanics(t, func() {
		a.ObserveAction(actions.Outcome{})
		a.ObserveTarget("failed")
		a.ObserveAccountRun("acc", false, 0)
		a.SetActiveAccounts(1)
		a.SessionFinished(time.Now())
	})
}
