package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values shared across registrations.
const (
	// labelHandler is the "handler" label value used to partition metrics by
	// the logical endpoint name rather than the raw URL path.
	labelHandler = "handler"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// ragRequestsTotal counts completed upload, query and delete operations,
	// partitioned by operation and outcome (see outcomeFor).
	ragRequestsTotal *prometheus.CounterVec

	// ragDurationSeconds records the wall-clock duration of each operation.
	ragDurationSeconds *prometheus.HistogramVec

	// chunksIngestedTotal counts chunks created by successful uploads.
	chunksIngestedTotal prometheus.Counter

	// contextChunks records how many chunks were passed to the generator.
	contextChunks prometheus.Histogram

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. indexLen, when non-nil, backs an index size gauge.
func newServerMetrics(reg prometheus.Registerer, indexLen func() int) *serverMetrics {
	factory := promauto.With(reg)

	m := &serverMetrics{
		ragRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docrag",
			Subsystem: "rag",
			Name:      "requests_total",
			Help:      "Total number of RAG operations completed, partitioned by operation and outcome.",
		}, []string{"operation", "outcome"}),

		ragDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docrag",
			Subsystem: "rag",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of RAG operations.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}, []string{"operation", "outcome"}),

		chunksIngestedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "docrag",
			Subsystem: "ingestion",
			Name:      "chunks_total",
			Help:      "Total number of chunks created by successful uploads.",
		}),

		contextChunks: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "docrag",
			Subsystem: "rag",
			Name:      "context_chunks",
			Help:      "Number of chunks passed to the generator per query.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docrag",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docrag",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}

	if indexLen != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "docrag",
			Subsystem: "index",
			Name:      "chunks",
			Help:      "Number of chunks currently held by the vector index.",
		}, func() float64 { return float64(indexLen()) })
	}
	return m
}
