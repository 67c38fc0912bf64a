package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval and ingestion Prometheus metrics.
var (
	QuestionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docqa",
			Name:      "questions_total",
			Help:      "Questions answered, by outcome and whether the question was reformulated",
		},
		[]string{"status", "reformulated"},
	)

	RetrievedChunks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "docqa",
			Name:      "retrieved_chunks",
			Help:      "Number of chunks placed into the answer context",
			Buckets:   []float64{0, 1, 2, 3, 4, 6, 8, 12, 16},
		},
	)

	IngestedChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docqa",
			Name:      "ingested_chunks_total",
			Help:      "Chunks upserted into the vector index",
		},
		[]string{"index"},
	)

	IngestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docqa",
			Name:      "ingest_duration_seconds",
			Help:      "Duration of a full ingestion run",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
		[]string{"index", "status"},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers retrieval and ingestion metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(QuestionsTotal)
	prometheus.MustRegister(RetrievedChunks)
	prometheus.MustRegister(IngestedChunksTotal)
	prometheus.MustRegister(IngestDuration)
	pipelineMetricsRegistered = true
}
