package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ingestion and query Prometheus metrics.
var (
	PipelineItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "archipanion",
			Name:      "pipeline_items_total",
			Help:      "Retrievables processed by extraction stages",
		},
		[]string{"field", "status"}, // status: "ok" / "failed"
	)

	DescriptorWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "archipanion",
			Name:      "descriptor_writes_total",
			Help:      "Descriptor batch writes",
		},
		[]string{"field", "status"},
	)

	JobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "archipanion",
			Name:      "extraction_jobs_total",
			Help:      "Finished extraction jobs by final status",
		},
		[]string{"status"},
	)

	QueryCompileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "archipanion",
			Name:      "query_compile_duration_seconds",
			Help:      "Query compilation duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"schema", "status"},
	)

	QueryExecuteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "archipanion",
			Name:      "query_execute_duration_seconds",
			Help:      "Query execution duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"schema", "status"},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers ingestion and query metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(PipelineItemsTotal)
	prometheus.MustRegister(DescriptorWritesTotal)
	prometheus.MustRegister(JobsTotal)
	prometheus.MustRegister(QueryCompileDuration)
	prometheus.MustRegister(QueryExecuteDuration)
	pipelineMetricsRegistered = true
}
