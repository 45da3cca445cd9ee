package metrics

import "github.com/prometheus/client_golang/prometheus"

// Content cache Prometheus metrics.
var (
	CacheLiveFiles = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "archipanion",
			Name:      "content_cache_live_files",
			Help:      "Number of cached content files still reachable",
		},
	)

	CachePurgesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "archipanion",
			Name:      "content_cache_purges_total",
			Help:      "Total number of purged content cache files",
		},
		[]string{"status"}, // "ok" / "error"
	)

	CacheBytesWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "archipanion",
			Name:      "content_cache_bytes_written_total",
			Help:      "Total bytes written to the content cache",
		},
	)
)

var cacheMetricsRegistered bool

// RegisterCacheMetrics registers content cache metrics. Must be called once from main.
func RegisterCacheMetrics() {
	if cacheMetricsRegistered {
		return
	}
	prometheus.MustRegister(CacheLiveFiles)
	prometheus.MustRegister(CachePurgesTotal)
	prometheus.MustRegister(CacheBytesWritten)
	cacheMetricsRegistered = true
}
