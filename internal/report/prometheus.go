package report

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/oseg/krawler/internal/fetch"
)

// PrometheusSink exports crawl outcome metrics. It owns all collectors for
// fetch results, manifest sizes and fetch latencies.
type PrometheusSink struct {
	outcomes      *prometheus.CounterVec
	manifestBytes *prometheus.CounterVec
	formats       *prometheus.CounterVec
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "krawler_fetch_outcomes_total",
			Help: "Fetch outcomes partitioned by platform and result.",
		}, []string{"platform", "result"}),
		manifestBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "krawler_manifest_bytes_total",
			Help: "Manifest bytes fetched per platform.",
		}, []string{"platform"}),
		formats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "krawler_manifest_formats_total",
			Help: "Fetched manifests partitioned by platform and format.",
		}, []string{"platform", "format"}),
	}
	for _, collector := range []prometheus.Collector{
		s.outcomes,
		s.manifestBytes,
		s.formats,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register outcome collector: %w", err)
		}
	}
	return s, nil
}

// Notify implements fetch.Listener. Safe for concurrent use.
func (s *PrometheusSink) Notify(_ context.Context, outcome *fetch.Outcome) {
	evt := NewEvent(outcome)
	platform := evt.Platform
	if platform == "" {
		platform = "unknown"
	}
	result := "success"
	if !evt.OK {
		result = "failure"
	}
	s.outcomes.WithLabelValues(platform, result).Inc()
	if evt.OK {
		s.manifestBytes.WithLabelValues(platform).Add(float64(evt.Bytes))
		s.formats.WithLabelValues(platform, evt.Format).Inc()
	}
}
