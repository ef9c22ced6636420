package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments shared across the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec   // Requests by method, route and status code
	HTTPRequestDuration  *prometheus.HistogramVec // Request latency by method and route
	WorkflowStepDuration *prometheus.HistogramVec // Extraction step latency by step and status
	WorkflowsQueued      prometheus.Gauge         // Workflows waiting in the engine queue
	IngestRecordsTotal   *prometheus.CounterVec   // Ingested records by kind (node, edge, error)
	GraphQueryDuration   prometheus.Histogram     // Graph query latency
}

// NewMetrics creates and registers the service metrics with the provided
// registerer. Tests pass a fresh prometheus.NewRegistry to avoid collisions
// with the global default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	httpRequestsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "casefile_http_requests_total",
		Help: "Total number of HTTP requests handled",
	}, []string{"method", "route", "code"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "casefile_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	workflowStepDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "casefile_workflow_step_duration_seconds",
		Help:    "Extraction workflow step latency in seconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
	}, []string{"step", "status"})

	workflowsQueued := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "casefile_workflows_queued",
		Help: "Number of extraction workflows waiting in the queue",
	})

	ingestRecordsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "casefile_ingest_records_total",
		Help: "Total number of ingested records by kind",
	}, []string{"kind"})

	graphQueryDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "casefile_graph_query_duration_seconds",
		Help:    "Graph query latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	reg.MustRegister(httpRequestsTotal)
	reg.MustRegister(httpRequestDuration)
	reg.MustRegister(workflowStepDuration)
	reg.MustRegister(workflowsQueued)
	reg.MustRegister(ingestRecordsTotal)
	reg.MustRegister(graphQueryDuration)

	return &Metrics{
		HTTPRequestsTotal:    httpRequestsTotal,
		HTTPRequestDuration:  httpRequestDuration,
		WorkflowStepDuration: workflowStepDuration,
		WorkflowsQueued:      workflowsQueued,
		IngestRecordsTotal:   ingestRecordsTotal,
		GraphQueryDuration:   graphQueryDuration,
	}
}
