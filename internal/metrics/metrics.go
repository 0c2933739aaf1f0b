// Package metrics provides Prometheus metrics for nexkb-core.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// HTTP request metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Job worker metrics
	JobsProcessedTotal *prometheus.CounterVec
	JobDuration        *prometheus.HistogramVec
	QueueDepth         *prometheus.GaugeVec

	// Janitor metrics
	JobsRequeuedTotal prometheus.Counter
	JobsPurgedTotal   prometheus.Counter
	JanitorRunsTotal  *prometheus.CounterVec

	// Query forwarding metrics
	QueriesForwardedTotal *prometheus.CounterVec
	QueryTokensTotal      prometheus.Counter
}

// New creates metrics registered on the default Prometheus registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates metrics registered on the given registerer.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{}

	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nexkb",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nexkb",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	m.HTTPRequestsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "nexkb",
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)

	m.JobsProcessedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nexkb",
			Name:      "jobs_processed_total",
			Help:      "Total number of background jobs processed",
		},
		[]string{"type", "status"},
	)

	m.JobDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nexkb",
			Name:      "job_duration_seconds",
			Help:      "Duration of background job processing in seconds",
			Buckets:   []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"type"},
	)

	m.QueueDepth = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "nexkb",
			Name:      "queue_depth",
			Help:      "Number of background jobs by status",
		},
		[]string{"status"},
	)

	m.JobsRequeuedTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nexkb",
			Name:      "jobs_requeued_total",
			Help:      "Total number of stale jobs returned to the queue",
		},
	)

	m.JobsPurgedTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nexkb",
			Name:      "jobs_purged_total",
			Help:      "Total number of terminal jobs removed by retention",
		},
	)

	m.JanitorRunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nexkb",
			Name:      "janitor_runs_total",
			Help:      "Total number of janitor maintenance passes",
		},
		[]string{"result"},
	)

	m.QueriesForwardedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nexkb",
			Name:      "queries_forwarded_total",
			Help:      "Total number of folder queries forwarded to the retrieval engine",
		},
		[]string{"status"},
	)

	m.QueryTokensTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nexkb",
			Name:      "query_tokens_total",
			Help:      "Total number of tokens consumed by folder queries",
		},
	)

	return m
}

// RecordHTTPRequest records a completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordJob records a processed background job.
func (m *Metrics) RecordJob(jobType, status string, duration time.Duration) {
	m.JobsProcessedTotal.WithLabelValues(jobType, status).Inc()
	m.JobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
}

// SetQueueDepth updates the per-status queue depth gauges.
func (m *Metrics) SetQueueDepth(pending, processing, completed, failed int64) {
	m.QueueDepth.WithLabelValues("pending").Set(float64(pending))
	m.QueueDepth.WithLabelValues("processing").Set(float64(processing))
	m.QueueDepth.WithLabelValues("completed").Set(float64(completed))
	m.QueueDepth.WithLabelValues("failed").Set(float64(failed))
}

// RecordJanitorRun records a janitor pass and its cleanup counts.
func (m *Metrics) RecordJanitorRun(requeued, purged int, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.JanitorRunsTotal.WithLabelValues(result).Inc()
	m.JobsRequeuedTotal.Add(float64(requeued))
	m.JobsPurgedTotal.Add(float64(purged))
}

// RecordQuery records a forwarded folder query.
func (m *Metrics) RecordQuery(err error, tokensUsed int) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.QueriesForwardedTotal.WithLabelValues(status).Inc()
	if tokensUsed > 0 {
		m.QueryTokensTotal.Add(float64(tokensUsed))
	}
}
