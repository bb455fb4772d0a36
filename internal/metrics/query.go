package metrics

import "github.com/prometheus/client_golang/prometheus"

// Query pipeline Prometheus metrics.
var (
	AnswerCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "revq",
			Name:      "answer_cache_total",
			Help:      "Semantic answer cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	RetrievalStrategyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "revq",
			Name:      "retrieval_strategy_total",
			Help:      "Retrieval strategy selections",
		},
		[]string{"strategy"}, // "id_restricted" / "full_search" / "lexical_only"
	)

	RetrievalDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "revq",
			Name:      "retrieval_duration_seconds",
			Help:      "Hybrid retrieval duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	QueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "revq",
			Name:      "query_duration_seconds",
			Help:      "End-to-end question answering duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
)

var queryMetricsRegistered bool

// RegisterQueryMetrics registers query pipeline metrics. Must be called once from main.
func RegisterQueryMetrics() {
	if queryMetricsRegistered {
		return
	}
	prometheus.MustRegister(AnswerCacheTotal)
	prometheus.MustRegister(RetrievalStrategyTotal)
	prometheus.MustRegister(RetrievalDuration)
	prometheus.MustRegister(QueryDuration)
	queryMetricsRegistered = true
}
