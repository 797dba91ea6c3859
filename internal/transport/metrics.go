package transport

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records sync call counts and latencies.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bindery",
			Subsystem: "sync",
			Name:      "requests_total",
			Help:      "Sync calls by verb and outcome.",
		}, []string{"method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bindery",
			Subsystem: "sync",
			Name:      "request_duration_seconds",
			Help:      "Sync call latency by verb.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.duration)
	}
	return m
}

// Wrap returns a Syncer that records every call made through next.
func (m *Metrics) Wrap(next Syncer) Syncer {
	return SyncerFunc(func(ctx context.Context, req *Request) (*Response, error) {
		start := time.Now()
		resp, err := next.Do(ctx, req)
		m.duration.WithLabelValues(string(req.Method)).Observe(time.Since(start).Seconds())
		m.requests.WithLabelValues(string(req.Method), outcome(resp)).Inc()
		return resp, err
	})
}

// RequestCount is one series of the request counter.
type RequestCount struct {
	Method string  `json:"method"`
	Code   string  `json:"code"`
	Count  float64 `json:"count"`
}

// RequestCounts reads the request counter back from g, in the gatherer's
// label order.
func RequestCounts(g prometheus.Gatherer) ([]RequestCount, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}
	var out []RequestCount
	for _, mf := range families {
		if mf.GetName() != "bindery_sync_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			rc := RequestCount{Count: m.GetCounter().GetValue()}
			for _, lp := range m.GetLabel() {
				switch lp.GetName() {
				case "method":
					rc.Method = lp.GetValue()
				case "code":
					rc.Code = lp.GetValue()
				}
			}
			out = append(out, rc)
		}
	}
	return out, nil
}

// Requests returns the request counter, labelled by method and code.
func (m *Metrics) Requests() *prometheus.CounterVec {
	return m.requests
}

func outcome(resp *Response) string {
	if resp == nil {
		return "error"
	}
	return strconv.Itoa(resp.Status)
}
