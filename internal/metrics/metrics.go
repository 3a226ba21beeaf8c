// Package metrics provides Prometheus metrics for life-reality.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"life-reality/internal/notify"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lifereality"

// Metrics holds every collector on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	// RequestsTotal counts HTTP requests by route, method and status.
	RequestsTotal *prometheus.CounterVec
	// RequestDuration measures HTTP handler latency.
	RequestDuration *prometheus.HistogramVec
	// InvalidationsTotal counts invalidation signals by collection and status.
	InvalidationsTotal *prometheus.CounterVec
	// OptimizeJobsTotal counts finished optimization jobs by status.
	OptimizeJobsTotal *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		InvalidationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invalidations_total",
				Help:      "Total number of invalidation signals",
			},
			[]string{"collection", "status"},
		),
		OptimizeJobsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "optimize_jobs_total",
				Help:      "Total number of processed optimization jobs",
			},
			[]string{"status"},
		),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordRequest records one served request.
func (m *Metrics) RecordRequest(route, method string, status int, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// RecordJob records the final status of an optimization job.
func (m *Metrics) RecordJob(status string) {
	m.OptimizeJobsTotal.WithLabelValues(status).Inc()
}

// Invalidator counts every signal passed through to next.
func (m *Metrics) Invalidator(next notify.Invalidator) notify.Invalidator {
	return notify.Func(func(ctx context.Context, collections ...notify.Collection) error {
		err := next.Invalidate(ctx, collections...)
		status := "ok"
		if err != nil {
			status = "error"
		}
		for _, c := range collections {
			m.InvalidationsTotal.WithLabelValues(string(c), status).Inc()
		}
		return err
	})
}
