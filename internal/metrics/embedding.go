package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Embedding Prometheus metrics.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vexdb",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding provider requests",
		},
		[]string{"provider", "model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vexdb",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding provider request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)

	EmbeddingTextsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vexdb",
			Name:      "embedding_texts_total",
			Help:      "Total texts embedded",
		},
		[]string{"provider", "model"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vexdb",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var embMetricsOnce sync.Once

// RegisterEmbeddingMetrics registers the Prometheus embedding metrics.
// Safe to call from every client construction; registration happens once.
func RegisterEmbeddingMetrics() {
	embMetricsOnce.Do(func() {
		prometheus.MustRegister(EmbeddingRequestsTotal)
		prometheus.MustRegister(EmbeddingRequestDuration)
		prometheus.MustRegister(EmbeddingTextsTotal)
		prometheus.MustRegister(EmbeddingCacheTotal)
	})
}
