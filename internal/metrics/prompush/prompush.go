// Package prompush implements a metrics.Backend that pushes to a Prometheus
// Pushgateway. Batch commands (migrate, content_rule) end before any scrape
// could reach them, so collected values are pushed on Flush.
package prompush

import (
	"fmt"
	"strings"

	"recsys/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend records into a private registry and pushes it on Flush.
type Backend struct {
	reg    *prometheus.Registry
	pusher *push.Pusher

	steps        *prometheus.CounterVec
	records      *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	recommends   *prometheus.CounterVec
	recommendDur *prometheus.HistogramVec
}

// NewBackend builds a backend pushing under job to the gateway at url.
func NewBackend(job, url string) (*Backend, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("prompush: empty pushgateway url")
	}
	if job == "" {
		job = "recsys"
	}

	b := &Backend{
		reg: prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Pipeline steps by outcome.",
		}, []string{"step", "status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Rows processed by kind.",
		}, []string{"kind"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.StepDuration,
			Help:    "Pipeline step duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"step", "status"}),
		recommends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RecommendRequests,
			Help: "Recommendation requests by path and outcome.",
		}, []string{"path", "status"}),
		recommendDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.RecommendDuration,
			Help:    "Recommendation latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"}),
	}
	b.reg.MustRegister(b.steps, b.records, b.stepDuration, b.recommends, b.recommendDur)
	b.pusher = push.New(url, job).Gatherer(b.reg)
	return b, nil
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	switch name {
	case metrics.StepTotal:
		b.steps.WithLabelValues(labels["step"], labels["status"]).Add(delta)
	case metrics.RecordsTotal:
		if labels["kind"] == "" {
			return
		}
		b.records.WithLabelValues(labels["kind"]).Add(delta)
	case metrics.RecommendRequests:
		b.recommends.WithLabelValues(labels["path"], labels["status"]).Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend. Unknown names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}
	switch name {
	case metrics.StepDuration:
		b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
	case metrics.RecommendDuration:
		b.recommendDur.WithLabelValues(labels["path"]).Observe(value)
	}
}

// Flush replaces the job's metric group on the gateway.
func (b *Backend) Flush() error {
	if err := b.pusher.Push(); err != nil {
		return fmt.Errorf("prompush: %w", err)
	}
	return nil
}

var (
	_ metrics.Backend = (*Backend)(nil)
	_ metrics.Flusher = (*Backend)(nil)
)
