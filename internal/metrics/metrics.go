// Package metrics exposes Prometheus instrumentation for the pipeline and
// the HTTP boundary.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the crosstalk daemon.
type Metrics struct {
	// Pipeline metrics
	RunsStarted   prometheus.Counter
	RunsCompleted prometheus.Counter
	RunsFailed    *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers all metrics with the default registry.
func New() *Metrics {
	return &Metrics{
		RunsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crosstalk_runs_started_total",
			Help: "Total number of pipeline runs started",
		}),
		RunsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crosstalk_runs_completed_total",
			Help: "Total number of pipeline runs that reached Complete",
		}),
		RunsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "crosstalk_runs_failed_total",
			Help: "Total number of pipeline runs that failed, by stage",
		}, []string{"stage"}),
		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crosstalk_stage_duration_seconds",
			Help:    "Duration of each pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"stage"}),
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "crosstalk_http_requests_total",
			Help: "Total number of HTTP requests, by endpoint and status",
		}, []string{"endpoint", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crosstalk_http_request_duration_seconds",
			Help:    "HTTP request duration, by endpoint",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}
