// Package metrics holds the Prometheus registry and instrument helpers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestCount counts API requests by path, method, and status.
	RequestCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memoire_requests_total",
		Help: "API requests",
	}, []string{"path", "method", "status"})

	// RequestLatency observes API request latency.
	RequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "memoire_request_latency_seconds",
		Help:    "API request latency",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"path", "method"})

	// RecallLatency observes recall handler latency.
	RecallLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "memoire_recall_latency_seconds",
		Help:    "Recall handler latency",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
	}, []string{"source"})

	// ExtractionCount counts background extractions by outcome.
	ExtractionCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memoire_extractions_total",
		Help: "Background extractions",
	}, []string{"status"})

	// JobCount counts processed queue jobs by kind and outcome.
	JobCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memoire_jobs_total",
		Help: "Queue jobs processed",
	}, []string{"kind", "status"})
)
