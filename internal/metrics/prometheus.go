package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ScanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alignlens_scan_duration_seconds",
			Help:    "Duration of whole-person comparison and pending scans",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"operation"},
	)

	PairsCompared = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alignlens_pairs_compared_total",
			Help: "Total (entity, attribute) answer pairs scored",
		},
	)

	PairsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alignlens_pairs_skipped_total",
			Help: "Pairs skipped due to per-pair scoring failures",
		},
	)

	MisalignmentsFound = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alignlens_misalignments_found_total",
			Help: "Below-threshold similarity records emitted",
		},
	)

	PendingItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alignlens_pending_items_total",
			Help: "Pending items produced, by reason",
		},
		[]string{"reason"},
	)

	SimilarityScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "alignlens_similarity_score",
			Help:    "Distribution of computed similarity scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	EmbeddingRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alignlens_embedding_requests_total",
			Help: "Embedding API calls by outcome",
		},
		[]string{"status"},
	)

	EmbeddingFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alignlens_embedding_fallbacks_total",
			Help: "Free-text comparisons that used the token-overlap fallback",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alignlens_cache_hits_total",
			Help: "Embedding cache hits by layer",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alignlens_cache_misses_total",
			Help: "Embedding cache misses",
		},
		[]string{"cache_type"},
	)
)

func Init() {
	prometheus.MustRegister(ScanDuration)
	prometheus.MustRegister(PairsCompared)
	prometheus.MustRegister(PairsSkipped)
	prometheus.MustRegister(MisalignmentsFound)
	prometheus.MustRegister(PendingItems)
	prometheus.MustRegister(SimilarityScore)
	prometheus.MustRegister(EmbeddingRequests)
	prometheus.MustRegister(EmbeddingFallbacks)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
