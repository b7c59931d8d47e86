package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type serverMetrics struct {
	requests    *prometheus.CounterVec
	ingested    prometheus.Counter
	rejected    *prometheus.CounterVec
	payload     prometheus.Histogram
	traces      prometheus.GaugeFunc
	subscribers prometheus.Gauge
	dropped     prometheus.Counter
}

// newServerMetrics registers the collector metrics with reg. A nil reg
// creates unregistered collectors.
func newServerMetrics(reg prometheus.Registerer, store Store) *serverMetrics {
	f := promauto.With(reg)
	return &serverMetrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tylolens_ingest_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		ingested: f.NewCounter(prometheus.CounterOpts{
			Name: "tylolens_ingest_traces_total",
			Help: "Trace payloads accepted",
		}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tylolens_ingest_rejected_total",
			Help: "Trace payloads rejected by reason",
		}, []string{"reason"}),
		payload: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tylolens_ingest_payload_bytes",
			Help:    "Size of accepted trace payloads",
			Buckets: prometheus.ExponentialBuckets(512, 4, 8),
		}),
		traces: f.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "tylolens_ingest_stored_traces",
			Help: "Traces currently held by the store",
		}, func() float64 { return float64(store.Len()) }),
		subscribers: f.NewGauge(prometheus.GaugeOpts{
			Name: "tylolens_ingest_stream_subscribers",
			Help: "Open /api/stream connections",
		}),
		dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "tylolens_ingest_stream_dropped_total",
			Help: "Stream updates skipped for slow subscribers",
		}),
	}
}
