package metrics

import "github.com/prometheus/client_golang/prometheus"

// Domain Prometheus metrics for search, providers, cache, validation,
// and the completion API.
var (
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medfuse",
			Name:      "searches_total",
			Help:      "Total number of searches",
		},
		[]string{"kind", "status"}, // kind: "search" / "refine"
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "medfuse",
			Name:      "search_duration_seconds",
			Help:      "End-to-end search duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind"},
	)

	MergedResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medfuse",
			Name:      "merged_results_total",
			Help:      "Result counts by category after merging",
		},
		[]string{"category"}, // "merged" / "pm_only" / "ctg_only"
	)

	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medfuse",
			Name:      "provider_requests_total",
			Help:      "Total upstream provider requests",
		},
		[]string{"provider", "operation", "status"},
	)

	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "medfuse",
			Name:      "provider_request_duration_seconds",
			Help:      "Upstream provider request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "operation"},
	)

	CacheOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medfuse",
			Name:      "cache_operations_total",
			Help:      "Cache hits, misses, and errors by backend",
		},
		[]string{"backend", "result"}, // result: "hit" / "miss" / "error"
	)

	ValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medfuse",
			Name:      "validations_total",
			Help:      "Validation pipeline runs by final status",
		},
		[]string{"status"}, // "passed" / "partial" / "failed"
	)

	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medfuse",
			Name:      "llm_requests_total",
			Help:      "Total completion API requests",
		},
		[]string{"model", "status"},
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "medfuse",
			Name:      "llm_request_duration_seconds",
			Help:      "Completion API request duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"model"},
	)

	LLMTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medfuse",
			Name:      "llm_tokens_total",
			Help:      "Total completion tokens consumed",
		},
		[]string{"model"},
	)
)

var domainMetricsRegistered bool

// RegisterDomainMetrics registers domain Prometheus metrics. Must be called once from main.
func RegisterDomainMetrics() {
	if domainMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchesTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(MergedResultsTotal)
	prometheus.MustRegister(ProviderRequestsTotal)
	prometheus.MustRegister(ProviderRequestDuration)
	prometheus.MustRegister(CacheOperationsTotal)
	prometheus.MustRegister(ValidationsTotal)
	prometheus.MustRegister(LLMRequestsTotal)
	prometheus.MustRegister(LLMRequestDuration)
	prometheus.MustRegister(LLMTokensTotal)
}
