package metrics

import "github.com/prometheus/client_golang/prometheus"

// Remote provider metrics: the OpenAI-compatible embedding API and the
// external feature server share one set of series, labelled by provider.
// For the feature server, model is the endpoint path.
var (
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "archipanion",
			Name:      "provider_requests_total",
			Help:      "Total number of feature and embedding provider requests",
		},
		[]string{"provider", "model", "status"},
	)

	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "archipanion",
			Name:      "provider_request_duration_seconds",
			Help:      "Successful provider request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)

	ProviderErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "archipanion",
			Name:      "provider_errors_total",
			Help:      "Provider errors by kind",
		},
		[]string{"provider", "model", "kind"}, // api_error, rate_limited, empty_response, dimension_mismatch
	)

	ProviderThrottleSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "archipanion",
			Name:      "provider_throttle_seconds",
			Help:      "Time spent waiting on the client-side rate limiter",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"provider"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "archipanion",
			Name:      "embedding_tokens_total",
			Help:      "Total embedding tokens consumed",
		},
		[]string{"provider", "model", "type"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "archipanion",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache lookups per vectorizer and tier",
		},
		[]string{"vectorizer", "result"}, // result: memory / store / shared / miss
	)
)

var providerMetricsRegistered bool

// RegisterProviderMetrics registers provider metrics. Must be called once from main.
func RegisterProviderMetrics() {
	if providerMetricsRegistered {
		return
	}
	prometheus.MustRegister(ProviderRequestsTotal)
	prometheus.MustRegister(ProviderRequestDuration)
	prometheus.MustRegister(ProviderErrorsTotal)
	prometheus.MustRegister(ProviderThrottleSeconds)
	prometheus.MustRegister(EmbeddingTokensTotal)
	prometheus.MustRegister(EmbeddingCacheTotal)
	providerMetricsRegistered = true
}
